package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/api"
	"github.com/sanosuguru/go-coworking-reservation/internal/api/handler"
	custommw "github.com/sanosuguru/go-coworking-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-coworking-reservation/internal/application"
	"github.com/sanosuguru/go-coworking-reservation/internal/config"
	"github.com/sanosuguru/go-coworking-reservation/internal/infrastructure/billing"
	"github.com/sanosuguru/go-coworking-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-coworking-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-coworking-reservation/internal/worker"
)

func main() {
	cfg := config.Load()

	env := os.Getenv("APP_ENV")
	logger.Set(logger.NewLogger(env))
	defer logger.Sync()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	if migrationsPath := os.Getenv("MIGRATIONS_PATH"); migrationsPath != "" {
		if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
			logger.Fatal("マイグレーションに失敗", zap.Error(err))
		}
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		logger.Fatal("Redis接続に失敗", zap.Error(err))
	}

	m := metrics.Init()
	clk := clock.NewSystem()

	// リポジトリ・インフラ
	spaceRepo := postgres.NewSpaceRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	txManager := postgres.NewTxManager(db)
	lockManager := redisinfra.NewLockManager(redisClient)
	slotCache := redisinfra.NewSlotCache(redisClient)
	gateway := billing.NewLogGateway()

	// 通知ハブ
	hub := notifier.NewHub(cfg.Booking.HeartbeatInterval, m)
	hubCtx, hubCancel := context.WithCancel(ctx)
	defer hubCancel()
	go hub.Start(hubCtx)

	// アプリケーションサービス
	spaceService := application.NewSpaceService(spaceRepo)
	availabilityService := application.NewAvailabilityService(spaceRepo, reservationRepo, slotCache, clk, cfg.Booking)
	holdService := application.NewHoldService(txManager, reservationRepo, paymentRepo, spaceRepo, lockManager, gateway, hub, slotCache, clk, cfg.Booking, m)
	reservationService := application.NewReservationService(txManager, reservationRepo, paymentRepo, hub, slotCache, clk, cfg.Booking, m)

	// 期限切れ掃除ワーカー
	sweeper := worker.NewExpirySweeper(reservationService, cfg.Booking.SweepInterval, cfg.Booking.SweepTimeout, m)
	sweeperCtx, sweeperCancel := context.WithCancel(ctx)
	defer sweeperCancel()
	go sweeper.Start(sweeperCtx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()
	custommw.SetupMiddleware(e)
	e.Use(custommw.PrometheusMiddleware(m))

	// ハンドラー
	healthHandler := handler.NewHealthHandler()
	spaceHandler := handler.NewSpaceHandler(spaceService, availabilityService)
	reservationHandler := handler.NewReservationHandler(holdService, reservationService)
	eventsHandler := handler.NewEventsHandler(hub, spaceService)

	// ルーティング
	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.GET("/spaces", spaceHandler.List)
	v1.GET("/spaces/:id", spaceHandler.GetByID)
	v1.GET("/spaces/:id/availability", spaceHandler.CheckAvailability)
	v1.GET("/spaces/:id/slots", spaceHandler.GetSlotStatuses)
	v1.GET("/spaces/:id/events", eventsHandler.Stream)
	v1.POST("/holds", reservationHandler.CreateHold)
	v1.GET("/reservations", reservationHandler.GetOwnerReservations)
	v1.GET("/reservations/:id", reservationHandler.GetByID)
	v1.POST("/reservations/:id/confirm", reservationHandler.Confirm)
	v1.POST("/reservations/:id/suspend", reservationHandler.Suspend)
	v1.POST("/reservations/duplicates/cancel", reservationHandler.CancelDuplicates)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())

	// サーバー起動
	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	sweeperCancel()
	hubCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
