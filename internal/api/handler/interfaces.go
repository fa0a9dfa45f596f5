package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/application"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
)

// HoldServiceInterface は仮押さえサービスのインターフェース
type HoldServiceInterface interface {
	CreateHold(ctx context.Context, input application.CreateHoldInput) (*reservation.Reservation, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	GetOwnerReservations(ctx context.Context, ownerID string, limit, offset int) ([]*reservation.Reservation, error)
	ResolvePayment(ctx context.Context, id string, outcome application.PaymentOutcome) (*reservation.Reservation, error)
	Suspend(ctx context.Context, id string) (*reservation.Reservation, error)
	CancelDuplicates(ctx context.Context, input application.CancelDuplicatesInput) (int, error)
}

// AvailabilityServiceInterface は空き判定サービスのインターフェース
type AvailabilityServiceInterface interface {
	CheckAvailability(ctx context.Context, spaceID string, start, end time.Time) (bool, error)
	GetSlotStatuses(ctx context.Context, spaceID string, date time.Time) ([]application.SlotStatus, error)
}

// SpaceServiceInterface はスペース参照のインターフェース
type SpaceServiceInterface interface {
	GetByID(ctx context.Context, id string) (*space.Space, error)
	List(ctx context.Context, limit, offset int) ([]*space.Space, error)
}

// SubscriptionHub はイベントストリーム購読のインターフェース
type SubscriptionHub interface {
	Subscribe(spaceID string) *notifier.Subscriber
	Unsubscribe(sub *notifier.Subscriber)
}
