package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
)

// EventPublisher はスロット状態変化の配信先インターフェース
type EventPublisher interface {
	Publish(ev notifier.Event)
}

// PaymentGateway は決済プロバイダへの発信インターフェース（fire-and-forget）
type PaymentGateway interface {
	RequestPayment(ctx context.Context, reservationID string, amount int) (string, error)
}

// SlotSnapshotCache はスロット状態スナップショットのキャッシュインターフェース
type SlotSnapshotCache interface {
	GetSnapshot(ctx context.Context, spaceID, date string) ([]byte, error)
	SetSnapshot(ctx context.Context, spaceID, date string, data []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, spaceID string, dates ...string) error
}

const (
	storageMaxRetries = 3
	storageRetryDelay = 100 * time.Millisecond
)

// isDomainError はリトライしても意味のないドメイン起因のエラーかを返す
func isDomainError(err error) bool {
	return errors.Is(err, reservation.ErrConflict) ||
		errors.Is(err, reservation.ErrStaleState) ||
		errors.Is(err, reservation.ErrInvalidRange) ||
		errors.Is(err, reservation.ErrIllegalTransition) ||
		errors.Is(err, reservation.ErrReservationNotFound) ||
		errors.Is(err, space.ErrSpaceNotFound) ||
		errors.Is(err, payment.ErrPaymentNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// withStorageRetry はストレージの一時的な失敗を有限回リトライする
// リトライを使い切った場合は ErrUnavailable でラップして返す
func withStorageRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < storageMaxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if isDomainError(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(storageRetryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("%w: %v", reservation.ErrUnavailable, lastErr)
}

// slotDates は予約時間帯が跨る日付の一覧を返す（キャッシュ無効化用）
func slotDates(slot reservation.TimeRange) []string {
	var dates []string
	day := slot.Start.UTC().Truncate(24 * time.Hour)
	for !day.After(slot.End.UTC()) {
		dates = append(dates, day.Format("2006-01-02"))
		day = day.Add(24 * time.Hour)
	}
	return dates
}
