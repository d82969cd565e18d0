package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
)

const seatTypeColumns = `id, concert_id, name, description, price, capacity, is_active, created_at`

type seatTypeRow struct {
	ID          string    `db:"id"`
	ConcertID   string    `db:"concert_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Price       int       `db:"price"`
	Capacity    int       `db:"capacity"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

type SeatTypeRepository struct{ db *sqlx.DB }

func NewSeatTypeRepository(db *sqlx.DB) *SeatTypeRepository {
	return &SeatTypeRepository{db: db}
}

// CreateBulk は座席種別を1トランザクションで作成する
func (r *SeatTypeRepository) CreateBulk(ctx context.Context, concertID string, seatTypes []*concert.SeatType) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM concerts WHERE id = $1 FOR UPDATE`, concertID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return concert.ErrConcertNotFound
		}
		return fmt.Errorf("コンサート確認に失敗: %w", err)
	}

	query := `INSERT INTO seat_types (concert_id, name, description, price, capacity, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	for _, st := range seatTypes {
		st.ConcertID = concertID
		if err := tx.QueryRowContext(ctx, query, concertID, st.Name, st.Description, st.Price, st.Capacity, st.IsActive, st.CreatedAt).Scan(&st.ID); err != nil {
			return fmt.Errorf("座席種別作成に失敗: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (r *SeatTypeRepository) GetByID(ctx context.Context, id string) (*concert.SeatType, error) {
	var row seatTypeRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+seatTypeColumns+` FROM seat_types WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, concert.ErrSeatTypeNotFound
		}
		return nil, fmt.Errorf("座席種別取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SeatTypeRepository) ListByConcertID(ctx context.Context, concertID string) ([]*concert.SeatType, error) {
	var rows []seatTypeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+seatTypeColumns+` FROM seat_types WHERE concert_id = $1 ORDER BY created_at, id`, concertID); err != nil {
		return nil, fmt.Errorf("座席種別一覧取得に失敗: %w", err)
	}
	return toSeatTypes(rows), nil
}

func (r *SeatTypeRepository) ListAll(ctx context.Context) ([]*concert.SeatType, error) {
	var rows []seatTypeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+seatTypeColumns+` FROM seat_types ORDER BY concert_id, created_at`); err != nil {
		return nil, fmt.Errorf("座席種別一覧取得に失敗: %w", err)
	}
	return toSeatTypes(rows), nil
}

func (row *seatTypeRow) toEntity() *concert.SeatType {
	return &concert.SeatType{
		ID: row.ID, ConcertID: row.ConcertID, Name: row.Name, Description: row.Description,
		Price: row.Price, Capacity: row.Capacity, IsActive: row.IsActive, CreatedAt: row.CreatedAt,
	}
}

func toSeatTypes(rows []seatTypeRow) []*concert.SeatType {
	result := make([]*concert.SeatType, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ concert.SeatTypeRepository = (*SeatTypeRepository)(nil)
