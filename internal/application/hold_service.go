package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/config"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/lock"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/metrics"
)

const (
	lockTTL        = 10 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// HoldService は仮押さえ作成を調停する
// 「空き確認→作成」の列をスペース単位の排他ロックで直列化し、
// 同一スペースの重なる時間帯に対して同時に成功する呼び出しを高々1つに制限する
type HoldService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	paymentRepo     payment.Repository
	spaceRepo       space.Repository
	lockManager     lock.Manager
	gateway         PaymentGateway
	publisher       EventPublisher
	cache           SlotSnapshotCache
	clk             clock.Clock
	cfg             config.BookingConfig
	metrics         *metrics.Metrics
}

func NewHoldService(
	txManager transaction.Manager,
	rr reservation.Repository,
	pr payment.Repository,
	sr space.Repository,
	lm lock.Manager,
	gw PaymentGateway,
	pub EventPublisher,
	cache SlotSnapshotCache,
	clk clock.Clock,
	cfg config.BookingConfig,
	m *metrics.Metrics,
) *HoldService {
	return &HoldService{
		txManager:       txManager,
		reservationRepo: rr,
		paymentRepo:     pr,
		spaceRepo:       sr,
		lockManager:     lm,
		gateway:         gw,
		publisher:       pub,
		cache:           cache,
		clk:             clk,
		cfg:             cfg,
		metrics:         m,
	}
}

type CreateHoldInput struct {
	SpaceID string
	OwnerID string
	Start   time.Time
	End     time.Time
}

// CreateHold は仮押さえを作成する
// Conflict は正常な結果の一つであり、エンジン側でのリトライは行わない
func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (*reservation.Reservation, error) {
	res, err := s.createHold(ctx, input)
	s.countHold(err)
	return res, err
}

func (s *HoldService) createHold(ctx context.Context, input CreateHoldInput) (*reservation.Reservation, error) {
	slot, err := reservation.NewTimeRange(input.Start, input.End)
	if err != nil {
		return nil, err
	}
	if slot.Duration() < s.cfg.MinHoldDuration {
		return nil, reservation.ErrRangeTooShort
	}
	if slot.Duration() > s.cfg.MaxHoldDuration {
		return nil, reservation.ErrRangeTooLong
	}
	if input.OwnerID == "" {
		return nil, reservation.ErrOwnerIDRequired
	}

	// スペース確認
	sp, err := s.spaceRepo.GetByID(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}
	if !sp.Active {
		return nil, space.ErrSpaceInactive
	}
	if !sp.WithinOperatingHours(slot) {
		return nil, space.ErrOutsideOperatingHours
	}

	// スペース単位の排他ロックを取得し、空き確認と作成の間に他の要求が割り込めないようにする
	if s.lockManager != nil {
		l, err := s.lockManager.AcquireWithRetry(ctx, s.spaceLockKey(input.SpaceID), lockTTL, lockMaxRetries, lockRetryDelay)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				// 他の予約処理が進行中 = 競合として扱う
				return nil, fmt.Errorf("%w: 別の予約処理が進行中です", reservation.ErrConflict)
			}
			return nil, fmt.Errorf("%w: %v", reservation.ErrUnavailable, err)
		}
		defer l.Release(ctx)
	}

	now := s.clk.Now()

	// 空き確認
	var occupying []*reservation.Reservation
	err = withStorageRetry(ctx, func() error {
		var listErr error
		occupying, listErr = s.reservationRepo.ListOccupying(ctx, input.SpaceID, slot, now)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	if len(occupying) > 0 {
		return nil, reservation.ErrConflict
	}

	res := reservation.NewHold(input.SpaceID, input.OwnerID, slot, now, s.cfg.HoldTTL)
	if err := res.Validate(); err != nil {
		return nil, err
	}
	amount := sp.Amount(slot)

	// トランザクション: 予約と保留決済を同時に作成する
	err = withStorageRetry(ctx, func() error {
		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", err)
		}
		defer tx.Rollback()

		if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
			return err
		}
		pay := payment.NewPayment(res.ID, amount, now)
		if err := s.paymentRepo.Create(ctx, tx, pay); err != nil {
			return err
		}
		res.PaymentID = &pay.ID
		if err := s.reservationRepo.UpdateStatus(ctx, tx, res); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("コミットに失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 決済要求を発行（fire-and-forget、失敗してもホールド自体は有効）
	if s.gateway != nil {
		if _, gwErr := s.gateway.RequestPayment(ctx, res.ID, amount); gwErr != nil {
			logger.Warn("決済要求の発行に失敗", zap.String("reservation_id", res.ID), zap.Error(gwErr))
		}
	}

	s.afterTransition(ctx, notifier.NewSlotOccupied(input.SpaceID, slot, now), input.SpaceID, slot)
	return res, nil
}

func (s *HoldService) spaceLockKey(spaceID string) string {
	return "space:" + spaceID
}

func (s *HoldService) afterTransition(ctx context.Context, ev notifier.Event, spaceID string, slot reservation.TimeRange) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, spaceID, slotDates(slot)...); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
}

func (s *HoldService) countHold(err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
		s.metrics.ActiveReservations.WithLabelValues(string(reservation.StatusHeld)).Inc()
	case errors.Is(err, reservation.ErrConflict):
		status = "conflict"
	case errors.Is(err, reservation.ErrInvalidRange),
		errors.Is(err, reservation.ErrRangeTooShort),
		errors.Is(err, reservation.ErrRangeTooLong):
		status = "invalid_range"
	case errors.Is(err, lock.ErrNotAcquired):
		status = "lock_failed"
	default:
		status = "error"
	}
	s.metrics.HoldsTotal.WithLabelValues(status).Inc()
}
