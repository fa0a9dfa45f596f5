package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	// 占有中の予約と時間帯が重なる場合は ErrConflict を返す
	Create(ctx context.Context, tx transaction.Tx, r *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// GetByOwnerID はオーナーIDから予約一覧を取得する
	GetByOwnerID(ctx context.Context, ownerID string, limit, offset int) ([]*Reservation, error)

	// ListOccupying は now 時点で slot と重なる占有中の予約を取得する
	ListOccupying(ctx context.Context, spaceID string, slot TimeRange, now time.Time) ([]*Reservation, error)

	// ListBySpaceAndRange はスペースの指定期間内に重なる全予約を取得する（スナップショット用）
	ListBySpaceAndRange(ctx context.Context, spaceID string, slot TimeRange) ([]*Reservation, error)

	// UpdateStatus は状態遷移を永続化する（トランザクション必須）
	// version が一致しない場合は ErrStaleState を返す
	UpdateStatus(ctx context.Context, tx transaction.Tx, r *Reservation) error

	// ListLeaseElapsed はリース期限切れまたは終了時刻を過ぎた占有中予約を取得する
	ListLeaseElapsed(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	// ListEndingUnconfirmed は horizon 以内に終了する未確定の予約を取得する（通知用・読み取り専用）
	ListEndingUnconfirmed(ctx context.Context, now time.Time, horizon time.Duration) ([]*Reservation, error)

	// FindDuplicateHolds は同一スペース・同一時間帯・同一オーナーの仮押さえを取得する
	FindDuplicateHolds(ctx context.Context, spaceID string, slot TimeRange, ownerID string) ([]*Reservation, error)
}
