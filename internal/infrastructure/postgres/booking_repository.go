package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
)

// 一意制約違反
const uniqueViolation = "23505"

const bookingColumns = `id, user_id, concert_id, seat_type_id, status, created_at, updated_at`

type bookingRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	ConcertID  string    `db:"concert_id"`
	SeatTypeID string    `db:"seat_type_id"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	query := `INSERT INTO bookings (user_id, concert_id, seat_type_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, b.UserID, b.ConcertID, b.SeatTypeID, string(b.Status), b.CreatedAt, b.UpdatedAt).Scan(&b.ID); err != nil {
		if isUniqueViolation(err) {
			return booking.ErrDuplicateBooking
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) FindActive(ctx context.Context, userID, concertID string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 AND concert_id = $2 AND status = 'ACTIVE'`
	if err := r.db.GetContext(ctx, &row, query, userID, concertID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("有効な予約の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

// UpdateStatus は現在の状態が from の行だけを更新する
// 同時キャンセルで二重に在庫を戻さないための条件付き更新
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	query := `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, string(b.Status), b.UpdatedAt, b.ID, string(from))
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	if rows == 0 {
		return booking.ErrNoActiveBooking
	}
	return nil
}

func (r *BookingRepository) Count(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	conds := []string{"concert_id = $1"}
	args := []interface{}{concertID}
	if seatTypeID != "" {
		args = append(args, seatTypeID)
		conds = append(conds, fmt.Sprintf("seat_type_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE ` + strings.Join(conds, " AND ")
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("予約数の取得に失敗: %w", err)
	}
	return count, nil
}

func (row *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: row.ID, UserID: row.UserID, ConcertID: row.ConcertID, SeatTypeID: row.SeatTypeID,
		Status: booking.Status(row.Status), CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ booking.Repository = (*BookingRepository)(nil)
