package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
)

type spaceRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	HourlyRate int       `db:"hourly_rate"`
	OpenHour   int       `db:"open_hour"`
	CloseHour  int       `db:"close_hour"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *spaceRow) toEntity() *space.Space {
	return &space.Space{
		ID:         r.ID,
		Name:       r.Name,
		HourlyRate: r.HourlyRate,
		OpenHour:   r.OpenHour,
		CloseHour:  r.CloseHour,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// SpaceRepository はカタログ側が管理する spaces テーブルへの読み取り専用アダプタ
type SpaceRepository struct{ db *sqlx.DB }

func NewSpaceRepository(db *sqlx.DB) *SpaceRepository {
	return &SpaceRepository{db: db}
}

func (r *SpaceRepository) GetByID(ctx context.Context, id string) (*space.Space, error) {
	var row spaceRow
	query := `SELECT id, name, hourly_rate, open_hour, close_hour, active, created_at, updated_at FROM spaces WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, space.ErrSpaceNotFound
		}
		return nil, fmt.Errorf("スペース取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SpaceRepository) List(ctx context.Context, limit, offset int) ([]*space.Space, error) {
	var rows []spaceRow
	query := `SELECT id, name, hourly_rate, open_hour, close_hour, active, created_at, updated_at FROM spaces ORDER BY name LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("スペース一覧取得に失敗: %w", err)
	}
	result := make([]*space.Space, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

var _ space.Repository = (*SpaceRepository)(nil)
