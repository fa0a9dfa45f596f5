package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/config"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/metrics"
)

// sweepBatchSize は掃除1回あたりの処理上限
const sweepBatchSize = 100

// PaymentOutcome は決済プロバイダから届く結果シグナル
type PaymentOutcome string

const (
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
)

// ErrInvalidOutcome は未知の決済結果シグナル
var ErrInvalidOutcome = errors.New("決済結果の指定が不正です")

// ReservationService は予約の状態遷移を所有する
// すべての遷移は予約IDをキーとした楽観的ロック付きの読み取り・変更・書き込みで行う
type ReservationService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	paymentRepo     payment.Repository
	publisher       EventPublisher
	cache           SlotSnapshotCache
	clk             clock.Clock
	cfg             config.BookingConfig
	metrics         *metrics.Metrics
}

func NewReservationService(
	txManager transaction.Manager,
	rr reservation.Repository,
	pr payment.Repository,
	pub EventPublisher,
	cache SlotSnapshotCache,
	clk clock.Clock,
	cfg config.BookingConfig,
	m *metrics.Metrics,
) *ReservationService {
	return &ReservationService{
		txManager:       txManager,
		reservationRepo: rr,
		paymentRepo:     pr,
		publisher:       pub,
		cache:           cache,
		clk:             clk,
		cfg:             cfg,
		metrics:         m,
	}
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.reservationRepo.GetByID(ctx, id)
}

func (s *ReservationService) GetOwnerReservations(ctx context.Context, ownerID string, limit, offset int) ([]*reservation.Reservation, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.reservationRepo.GetByOwnerID(ctx, ownerID, limit, offset)
}

// ResolvePayment は決済結果シグナルを状態機械へ適用する
// succeeded → confirmed、failed → payment_failed（スロットの占有は掃除まで継続）
// 楽観的ロックの競合時は一度だけ再読み込みして再適用する
func (s *ReservationService) ResolvePayment(ctx context.Context, id string, outcome PaymentOutcome) (*reservation.Reservation, error) {
	if outcome != PaymentOutcomeSucceeded && outcome != PaymentOutcomeFailed {
		return nil, ErrInvalidOutcome
	}

	res, err := s.applyWithStaleRetry(ctx, id, func(res *reservation.Reservation, tx transaction.Tx) error {
		now := s.clk.Now()
		if outcome == PaymentOutcomeSucceeded {
			if err := res.Confirm(now); err != nil {
				return err
			}
		} else {
			if err := res.MarkPaymentFailed(now); err != nil {
				return err
			}
		}
		return s.cascadePayment(ctx, tx, res.ID, outcome, now)
	})
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	// 確定も失敗もスロットの見え方は「占有中」のままだが、遷移自体は必ず配信する
	s.afterTransition(ctx, notifier.NewSlotOccupied(res.SpaceID, res.Slot, now), res.SpaceID, res.Slot)
	if s.metrics != nil && outcome == PaymentOutcomeSucceeded {
		s.metrics.ActiveReservations.WithLabelValues(string(reservation.StatusHeld)).Dec()
		s.metrics.ActiveReservations.WithLabelValues(string(reservation.StatusConfirmed)).Inc()
	}
	return res, nil
}

// Suspend は利用者による決済中断を記録する
func (s *ReservationService) Suspend(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.applyWithStaleRetry(ctx, id, func(res *reservation.Reservation, tx transaction.Tx) error {
		return res.Suspend(s.clk.Now())
	})
}

type CancelDuplicatesInput struct {
	SpaceID string
	OwnerID string
	Start   time.Time
	End     time.Time
	KeepID  string
}

// CancelDuplicates は同一スペース・同一時間帯・同一オーナーの重複仮押さえを整理する
// KeepID の予約だけを残し、他の仮押さえをキャンセルする。確定済みの予約には触れない
func (s *ReservationService) CancelDuplicates(ctx context.Context, input CancelDuplicatesInput) (int, error) {
	slot, err := reservation.NewTimeRange(input.Start, input.End)
	if err != nil {
		return 0, err
	}

	dups, err := s.reservationRepo.FindDuplicateHolds(ctx, input.SpaceID, slot, input.OwnerID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, dup := range dups {
		if dup.ID == input.KeepID {
			continue
		}
		_, err := s.applyWithStaleRetry(ctx, dup.ID, func(res *reservation.Reservation, tx transaction.Tx) error {
			return res.Cancel(s.clk.Now())
		})
		if err != nil {
			// 1件の失敗で整理全体を止めない
			logger.Warn("重複予約のキャンセルに失敗", zap.String("reservation_id", dup.ID), zap.Error(err))
			continue
		}
		cancelled++
	}

	// 残存する仮押さえが同じ時間帯を占有し続けるため、スロットの見え方は変わらない
	if cancelled > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, input.SpaceID, slotDates(slot)...); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
	return cancelled, nil
}

// ExpireElapsed はリース期限切れ・終了時刻超過の占有中予約を失効させる（Sweeper のスキャン1）
// 1件ずつ独立にコミットするため、途中で中断されても再実行で安全に継続できる
func (s *ReservationService) ExpireElapsed(ctx context.Context) (int, error) {
	now := s.clk.Now()
	rows, err := s.reservationRepo.ListLeaseElapsed(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約の走査に失敗: %w", err)
	}

	expired := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		_, err := s.applyWithStaleRetry(ctx, row.ID, func(res *reservation.Reservation, tx transaction.Tx) error {
			if err := res.Expire(s.clk.Now()); err != nil {
				return err
			}
			return s.cascadePayment(ctx, tx, res.ID, PaymentOutcomeFailed, s.clk.Now())
		})
		if err != nil {
			// 既に失効済み・確定済みの行はスキップして次へ
			logger.Warn("予約の失効処理をスキップ", zap.String("reservation_id", row.ID), zap.Error(err))
			continue
		}
		expired++
		s.afterTransition(ctx, notifier.NewSlotFreed(row.SpaceID, row.Slot, now), row.SpaceID, row.Slot)
		if s.metrics != nil {
			reason := "lease_elapsed"
			if row.Slot.End.Before(now) {
				reason = "slot_past"
			}
			s.metrics.ExpiredReservationsTotal.WithLabelValues(reason).Inc()
			s.metrics.ActiveReservations.WithLabelValues(string(row.Status)).Dec()
		}
	}
	return expired, nil
}

// FailStalePayments は保留のまま滞留した決済を失敗にし、予約を payment_failed へ遷移させる
// （Sweeper のスキャン2）
func (s *ReservationService) FailStalePayments(ctx context.Context) (int, error) {
	now := s.clk.Now()
	stale, err := s.paymentRepo.ListStalePending(ctx, now.Add(-s.cfg.HoldTTL), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("滞留決済の走査に失敗: %w", err)
	}

	failed := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}
		res, err := s.reservationRepo.GetByID(ctx, p.ReservationID)
		if err != nil {
			logger.Warn("滞留決済の予約取得に失敗", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		if res.Status != reservation.StatusHeld && res.Status != reservation.StatusSuspended {
			continue
		}
		_, err = s.applyWithStaleRetry(ctx, res.ID, func(r *reservation.Reservation, tx transaction.Tx) error {
			if err := r.MarkPaymentFailed(s.clk.Now()); err != nil {
				return err
			}
			return s.cascadePayment(ctx, tx, r.ID, PaymentOutcomeFailed, s.clk.Now())
		})
		if err != nil {
			logger.Warn("滞留決済の失敗処理をスキップ", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		failed++
		if s.metrics != nil {
			s.metrics.ExpiredReservationsTotal.WithLabelValues("payment_stale").Inc()
		}
	}
	return failed, nil
}

// ListExpiringSoon は警告対象期間内に終了する未確定予約を返す（Sweeper のスキャン3・読み取り専用）
func (s *ReservationService) ListExpiringSoon(ctx context.Context) ([]*reservation.Reservation, error) {
	return s.reservationRepo.ListEndingUnconfirmed(ctx, s.clk.Now(), s.cfg.WarnHorizon)
}

// applyWithStaleRetry は単一予約への遷移をトランザクション内で適用する
// 楽観的ロックの競合（ErrStaleState）時は一度だけ再読み込みして再適用する
func (s *ReservationService) applyWithStaleRetry(ctx context.Context, id string, apply func(res *reservation.Reservation, tx transaction.Tx) error) (*reservation.Reservation, error) {
	var res *reservation.Reservation
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		res, err = s.reservationRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		err = s.applyInTx(ctx, res, apply)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, reservation.ErrStaleState) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *ReservationService) applyInTx(ctx context.Context, res *reservation.Reservation, apply func(res *reservation.Reservation, tx transaction.Tx) error) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := apply(res, tx); err != nil {
		return err
	}
	if err := s.reservationRepo.UpdateStatus(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// cascadePayment は予約の遷移に連動して決済状態を更新する
// 決済レコードが無い場合は何もしない
func (s *ReservationService) cascadePayment(ctx context.Context, tx transaction.Tx, reservationID string, outcome PaymentOutcome, now time.Time) error {
	p, err := s.paymentRepo.GetByReservationID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return nil
		}
		return err
	}
	if p.Status != payment.StatusPending {
		return nil
	}
	if outcome == PaymentOutcomeSucceeded {
		if err := p.MarkSucceeded(now); err != nil {
			return err
		}
	} else {
		if err := p.MarkFailed(now); err != nil {
			return err
		}
	}
	return s.paymentRepo.UpdateStatus(ctx, tx, p)
}

func (s *ReservationService) afterTransition(ctx context.Context, ev notifier.Event, spaceID string, slot reservation.TimeRange) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, spaceID, slotDates(slot)...); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
}
