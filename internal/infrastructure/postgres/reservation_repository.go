package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
)

// occupyingStatuses は空き判定でスロットを占有する状態の一覧
var occupyingStatuses = pq.StringArray{
	string(reservation.StatusHeld),
	string(reservation.StatusSuspended),
	string(reservation.StatusPaymentFailed),
	string(reservation.StatusConfirmed),
}

type reservationRow struct {
	ID          string     `db:"id"`
	SpaceID     string     `db:"space_id"`
	OwnerID     string     `db:"owner_id"`
	StartAt     time.Time  `db:"start_at"`
	EndAt       time.Time  `db:"end_at"`
	Status      string     `db:"status"`
	PaymentID   *string    `db:"payment_id"`
	ExpiresAt   time.Time  `db:"expires_at"`
	ConfirmedAt *time.Time `db:"confirmed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	Version     int        `db:"version"`
}

func (r *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:      r.ID,
		SpaceID: r.SpaceID,
		OwnerID: r.OwnerID,
		Slot:    reservation.TimeRange{Start: r.StartAt, End: r.EndAt},
		Status:  reservation.Status(r.Status),
		PaymentID:   r.PaymentID,
		ExpiresAt:   r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}

const reservationColumns = `id, space_id, owner_id, start_at, end_at, status, payment_id, expires_at, confirmed_at, created_at, updated_at, version`

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `INSERT INTO reservations (space_id, owner_id, start_at, end_at, status, payment_id, expires_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		res.SpaceID, res.OwnerID, res.Slot.Start, res.Slot.End, string(res.Status),
		res.PaymentID, res.ExpiresAt, res.CreatedAt, res.UpdatedAt, res.Version,
	).Scan(&res.ID); err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			// 範囲排他制約の違反 = 同時刻帯の占有中予約が既に存在する
			return reservation.ErrConflict
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByOwnerID(ctx context.Context, ownerID string, limit, offset int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListOccupying(ctx context.Context, spaceID string, slot reservation.TimeRange, now time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	// 半開区間の重なり判定: a.start < b.end AND b.start < a.end
	// confirmed は常に占有、その他の占有状態はリースが有効な間のみ占有する
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE space_id = $1 AND start_at < $3 AND end_at > $2
		AND (status = $4 OR (status = ANY($5) AND expires_at > $6))`
	nonConfirmed := pq.StringArray{
		string(reservation.StatusHeld),
		string(reservation.StatusSuspended),
		string(reservation.StatusPaymentFailed),
	}
	if err := r.db.SelectContext(ctx, &rows, query,
		spaceID, slot.Start, slot.End, string(reservation.StatusConfirmed), nonConfirmed, now,
	); err != nil {
		return nil, fmt.Errorf("占有中予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListBySpaceAndRange(ctx context.Context, spaceID string, slot reservation.TimeRange) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE space_id = $1 AND start_at < $3 AND end_at > $2 AND status = ANY($4)
		ORDER BY start_at`
	if err := r.db.SelectContext(ctx, &rows, query, spaceID, slot.Start, slot.End, occupyingStatuses); err != nil {
		return nil, fmt.Errorf("スペース予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	// 楽観的ロック: version が一致する行のみ更新する
	query := `UPDATE reservations
		SET status = $1, payment_id = $2, confirmed_at = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6`
	result, err := sqlxTx.ExecContext(ctx, query,
		string(res.Status), res.PaymentID, res.ConfirmedAt, res.UpdatedAt, res.ID, res.Version)
	if err != nil {
		// 確定時に排他制約(confirmed同士の重複禁止)に当たる場合がある
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return reservation.ErrConflict
		}
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return reservation.ErrStaleState
	}
	res.Version++
	return nil
}

func (r *ReservationRepository) ListLeaseElapsed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	nonConfirmed := pq.StringArray{
		string(reservation.StatusHeld),
		string(reservation.StatusSuspended),
		string(reservation.StatusPaymentFailed),
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = ANY($1) AND (expires_at < $2 OR end_at < $2)
		ORDER BY expires_at LIMIT $3`
	if err := r.db.SelectContext(ctx, &rows, query, nonConfirmed, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListEndingUnconfirmed(ctx context.Context, now time.Time, horizon time.Duration) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	nonConfirmed := pq.StringArray{
		string(reservation.StatusHeld),
		string(reservation.StatusSuspended),
		string(reservation.StatusPaymentFailed),
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = ANY($1) AND end_at >= $2 AND end_at < $3
		ORDER BY end_at`
	if err := r.db.SelectContext(ctx, &rows, query, nonConfirmed, now, now.Add(horizon)); err != nil {
		return nil, fmt.Errorf("終了間近予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) FindDuplicateHolds(ctx context.Context, spaceID string, slot reservation.TimeRange, ownerID string) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE space_id = $1 AND owner_id = $2 AND start_at = $3 AND end_at = $4 AND status = $5
		ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query,
		spaceID, ownerID, slot.Start, slot.End, string(reservation.StatusHeld)); err != nil {
		return nil, fmt.Errorf("重複予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func toEntities(rows []reservationRow) []*reservation.Reservation {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ reservation.Repository = (*ReservationRepository)(nil)
