package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
)

// 座席種別IDは seat_types から集約する
const concertColumns = `c.id, c.name, c.artist, c.venue, c.description, c.start_time, c.end_time, c.is_active, c.created_at, c.updated_at,
	ARRAY(SELECT st.id FROM seat_types st WHERE st.concert_id = c.id ORDER BY st.created_at, st.id) AS seat_type_ids`

type concertRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Artist      string         `db:"artist"`
	Venue       string         `db:"venue"`
	Description string         `db:"description"`
	StartTime   time.Time      `db:"start_time"`
	EndTime     time.Time      `db:"end_time"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	SeatTypeIDs pq.StringArray `db:"seat_type_ids"`
}

// ConcertRepository はPostgreSQLを使用したコンサートリポジトリ
type ConcertRepository struct {
	db *sqlx.DB
}

// NewConcertRepository は新しいConcertRepositoryを作成する
func NewConcertRepository(db *sqlx.DB) *ConcertRepository {
	return &ConcertRepository{db: db}
}

// Create は新しいコンサートを作成する
func (r *ConcertRepository) Create(ctx context.Context, c *concert.Concert) error {
	query := `
		INSERT INTO concerts (name, artist, venue, description, start_time, end_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		c.Name, c.Artist, c.Venue, c.Description, c.StartTime, c.EndTime, c.IsActive, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("コンサート作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDからコンサートを取得する
func (r *ConcertRepository) GetByID(ctx context.Context, id string) (*concert.Concert, error) {
	var row concertRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+concertColumns+` FROM concerts c WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, concert.ErrConcertNotFound
		}
		return nil, fmt.Errorf("コンサート取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// Update はコンサートを更新する
func (r *ConcertRepository) Update(ctx context.Context, c *concert.Concert) error {
	query := `
		UPDATE concerts
		SET name = $1, artist = $2, venue = $3, description = $4, start_time = $5, end_time = $6, is_active = $7, updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Artist, c.Venue, c.Description, c.StartTime, c.EndTime, c.IsActive, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("コンサート更新に失敗: %w", err)
	}
	return requireAffected(result, concert.ErrConcertNotFound)
}

// Delete はコンサートを削除する（座席種別も削除される）
func (r *ConcertRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM concerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("コンサート削除に失敗: %w", err)
	}
	return requireAffected(result, concert.ErrConcertNotFound)
}

// ListUpcoming は開始前のアクティブなコンサートを取得する
func (r *ConcertRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*concert.Concert, error) {
	var rows []concertRow
	query := `SELECT ` + concertColumns + ` FROM concerts c WHERE c.is_active AND c.start_time > $1 ORDER BY c.start_time ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("開催予定一覧の取得に失敗: %w", err)
	}
	return toConcerts(rows), nil
}

// ListActive は無効化予定に載せるべきアクティブなコンサートを取得する
func (r *ConcertRepository) ListActive(ctx context.Context) ([]*concert.Concert, error) {
	var rows []concertRow
	query := `SELECT ` + concertColumns + ` FROM concerts c WHERE c.is_active ORDER BY c.start_time`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("スケジュール対象の取得に失敗: %w", err)
	}
	return toConcerts(rows), nil
}

// DeactivateIfActive はアクティブなものだけを非アクティブにし、更新したIDを返す
func (r *ConcertRepository) DeactivateIfActive(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var updated []string
	query := `UPDATE concerts SET is_active = FALSE, updated_at = NOW() WHERE id = ANY($1) AND is_active RETURNING id`
	if err := r.db.SelectContext(ctx, &updated, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("コンサート無効化に失敗: %w", err)
	}
	return updated, nil
}

func (row *concertRow) toEntity() *concert.Concert {
	ids := []string(row.SeatTypeIDs)
	if ids == nil {
		ids = []string{}
	}
	return &concert.Concert{
		ID: row.ID, Name: row.Name, Artist: row.Artist, Venue: row.Venue, Description: row.Description,
		StartTime: row.StartTime, EndTime: row.EndTime, IsActive: row.IsActive, SeatTypeIDs: ids,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

func toConcerts(rows []concertRow) []*concert.Concert {
	result := make([]*concert.Concert, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

var _ concert.Repository = (*ConcertRepository)(nil)
