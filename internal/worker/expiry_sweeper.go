package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/metrics"
)

// ReservationSweeper は掃除対象の予約を処理するインターフェース
type ReservationSweeper interface {
	// ExpireElapsed はリース切れ・終了済みの占有中予約を失効させる
	ExpireElapsed(ctx context.Context) (int, error)
	// FailStalePayments は保留のまま滞留した決済を失敗させる
	FailStalePayments(ctx context.Context) (int, error)
	// ListExpiringSoon は終了間近の未確定予約を返す（通知用・状態変更なし）
	ListExpiringSoon(ctx context.Context) ([]*reservation.Reservation, error)
}

// ExpirySweeper は放置された仮押さえを回収する定期ワーカー
// 各スキャンは冪等であり、実行中に中断されても再実行で安全に継続できる
type ExpirySweeper struct {
	service      ReservationSweeper
	interval     time.Duration
	sweepTimeout time.Duration
	metrics      *metrics.Metrics
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewExpirySweeper は新しいスイーパーを作成
func NewExpirySweeper(
	service ReservationSweeper,
	interval time.Duration,
	sweepTimeout time.Duration,
	m *metrics.Metrics,
) *ExpirySweeper {
	return &ExpirySweeper{
		service:      service,
		interval:     interval,
		sweepTimeout: sweepTimeout,
		metrics:      m,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start はスイーパーを開始（ブロックする）
func (s *ExpirySweeper) Start(ctx context.Context) {
	logger.Info("期限切れ掃除ワーカー開始",
		zap.Duration("interval", s.interval),
		zap.Duration("sweep_timeout", s.sweepTimeout),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ掃除ワーカー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("期限切れ掃除ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *ExpirySweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は3つの独立したスキャンを1回ずつ実行する
// 1件の失敗で全体は止めない（各スキャン内で行単位にスキップされる）
func (s *ExpirySweeper) sweep(ctx context.Context) {
	start := time.Now()
	sweepCtx, cancel := context.WithTimeout(ctx, s.sweepTimeout)
	defer cancel()

	log := logger.Get()
	log.Debug("期限切れ掃除開始")

	expired, err := s.service.ExpireElapsed(sweepCtx)
	if err != nil {
		log.Error("期限切れ予約の掃除に失敗", zap.Error(err))
	} else if expired > 0 {
		log.Info("期限切れ予約を失効", zap.Int("count", expired))
	}

	failed, err := s.service.FailStalePayments(sweepCtx)
	if err != nil {
		log.Error("滞留決済の掃除に失敗", zap.Error(err))
	} else if failed > 0 {
		log.Info("滞留決済を失敗に変更", zap.Int("count", failed))
	}

	expiring, err := s.service.ListExpiringSoon(sweepCtx)
	if err != nil {
		log.Error("終了間近予約の走査に失敗", zap.Error(err))
	} else {
		for _, res := range expiring {
			log.Warn("未確定のまま終了が近い予約",
				zap.String("reservation_id", res.ID),
				zap.String("space_id", res.SpaceID),
				zap.String("status", string(res.Status)),
				zap.Time("end_at", res.Slot.End),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
}
