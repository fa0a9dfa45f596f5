package payment

import (
	"context"
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
)

// Repository は決済リポジトリのインターフェース
type Repository interface {
	// Create は新しい決済を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, p *Payment) error

	// GetByID はIDから決済を取得する
	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetByReservationID は予約IDから決済を取得する
	GetByReservationID(ctx context.Context, reservationID string) (*Payment, error)

	// UpdateStatus は決済状態を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, p *Payment) error

	// ListStalePending は cutoff より前に作成され保留のままの決済を取得する
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error)
}
