package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
)

type paymentRow struct {
	ID            string    `db:"id"`
	ReservationID string    `db:"reservation_id"`
	Amount        int       `db:"amount"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *paymentRow) toEntity() *payment.Payment {
	return &payment.Payment{
		ID:            r.ID,
		ReservationID: r.ReservationID,
		Amount:        r.Amount,
		Status:        payment.Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type PaymentRepository struct{ db *sqlx.DB }

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx transaction.Tx, p *payment.Payment) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `INSERT INTO payments (reservation_id, amount, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		p.ReservationID, p.Amount, string(p.Status), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("決済作成に失敗: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	var row paymentRow
	query := `SELECT id, reservation_id, amount, status, created_at, updated_at FROM payments WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("決済取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *PaymentRepository) GetByReservationID(ctx context.Context, reservationID string) (*payment.Payment, error) {
	var row paymentRow
	query := `SELECT id, reservation_id, amount, status, created_at, updated_at FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, reservationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("決済取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, p *payment.Payment) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := sqlxTx.ExecContext(ctx, query, string(p.Status), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("決済更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return payment.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	var rows []paymentRow
	query := `SELECT id, reservation_id, amount, status, created_at, updated_at FROM payments
		WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`
	if err := r.db.SelectContext(ctx, &rows, query, string(payment.StatusPending), cutoff, limit); err != nil {
		return nil, fmt.Errorf("滞留決済取得に失敗: %w", err)
	}
	result := make([]*payment.Payment, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

var _ payment.Repository = (*PaymentRepository)(nil)
