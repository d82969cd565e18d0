package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindActive(ctx context.Context, userID, concertID string) (*booking.Booking, error) {
	args := m.Called(ctx, userID, concertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	args := m.Called(ctx, b, from)
	return args.Error(0)
}

func (m *MockBookingRepository) Count(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	args := m.Called(ctx, concertID, seatTypeID, status)
	return args.Int(0), args.Error(1)
}

// MockConcertDirectory implements ConcertDirectory
type MockConcertDirectory struct {
	mock.Mock
}

func (m *MockConcertDirectory) GetConcert(ctx context.Context, concertID string) (*concert.Concert, error) {
	args := m.Called(ctx, concertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.Concert), args.Error(1)
}

func (m *MockConcertDirectory) GetSeatType(ctx context.Context, concertID, seatTypeID string) (*concert.SeatType, error) {
	args := m.Called(ctx, concertID, seatTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.SeatType), args.Error(1)
}

// MockUserDirectory implements UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetEmail(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockSeatTypeRepository implements concert.SeatTypeRepository
type MockSeatTypeRepository struct {
	mock.Mock
}

func (m *MockSeatTypeRepository) CreateBulk(ctx context.Context, concertID string, seatTypes []*concert.SeatType) error {
	args := m.Called(ctx, concertID, seatTypes)
	return args.Error(0)
}

func (m *MockSeatTypeRepository) GetByID(ctx context.Context, id string) (*concert.SeatType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.SeatType), args.Error(1)
}

func (m *MockSeatTypeRepository) ListByConcertID(ctx context.Context, concertID string) ([]*concert.SeatType, error) {
	args := m.Called(ctx, concertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*concert.SeatType), args.Error(1)
}

func (m *MockSeatTypeRepository) ListAll(ctx context.Context) ([]*concert.SeatType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*concert.SeatType), args.Error(1)
}

// === In-memory fakes ===

// allowAll は常に検証を通す
type allowAll struct{}

func (allowAll) Validate(_ context.Context, concertID, seatTypeID string) (*ValidatedSelection, error) {
	return &ValidatedSelection{
		Concert:  &concert.Concert{ID: concertID, IsActive: true, SeatTypeIDs: []string{seatTypeID}},
		SeatType: &concert.SeatType{ID: seatTypeID, ConcertID: concertID, Capacity: 1},
	}, nil
}

// memoryCounter は Redis カウンタと同じ規則を持つメモリ上のカウンタ
type memoryCounter struct {
	mu         sync.Mutex
	available  map[string]int
	capacity   map[string]int
	releaseErr error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{available: map[string]int{}, capacity: map[string]int{}}
}

func counterKey(concertID, seatTypeID string) string { return concertID + "/" + seatTypeID }

func (c *memoryCounter) Reserve(_ context.Context, concertID, seatTypeID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := counterKey(concertID, seatTypeID)
	n, ok := c.available[k]
	if !ok {
		return 0, inventory.ErrNotInitialized
	}
	if n <= 0 {
		return 0, inventory.ErrExhausted
	}
	c.available[k] = n - 1
	return n - 1, nil
}

func (c *memoryCounter) Release(_ context.Context, concertID, seatTypeID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.releaseErr != nil {
		return 0, c.releaseErr
	}
	k := counterKey(concertID, seatTypeID)
	n, ok := c.available[k]
	if !ok {
		return 0, inventory.ErrNotInitialized
	}
	if n >= c.capacity[k] {
		return 0, inventory.ErrOverRelease
	}
	c.available[k] = n + 1
	return n + 1, nil
}

func (c *memoryCounter) Seed(_ context.Context, concertID, seatTypeID string, capacity int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := counterKey(concertID, seatTypeID)
	c.capacity[k] = capacity
	if _, ok := c.available[k]; ok {
		return false, nil
	}
	c.available[k] = capacity
	return true, nil
}

func (c *memoryCounter) Available(_ context.Context, concertID, seatTypeID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.available[counterKey(concertID, seatTypeID)]
	if !ok {
		return 0, inventory.ErrNotInitialized
	}
	return n, nil
}

// newRedisCounter は miniredis 上に C1/vip を capacity で初期化したカウンタを返す
func newRedisCounter(tb testing.TB, capacity int) *redisinfra.InventoryCounter {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })

	counter := redisinfra.NewInventoryCounter(client)
	_, err := counter.Seed(context.Background(), "C1", "vip", capacity)
	require.NoError(tb, err)
	return counter
}

// memoryBookingRepository は部分一意制約を再現するメモリ上のリポジトリ
type memoryBookingRepository struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]*booking.Booking
}

func newMemoryBookingRepository() *memoryBookingRepository {
	return &memoryBookingRepository{bookings: map[string]*booking.Booking{}}
}

func (r *memoryBookingRepository) Create(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bookings {
		if existing.IsActive() && existing.UserID == b.UserID && existing.ConcertID == b.ConcertID {
			return booking.ErrDuplicateBooking
		}
	}
	r.seq++
	b.ID = fmt.Sprintf("booking-%d", r.seq)
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memoryBookingRepository) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memoryBookingRepository) FindActive(_ context.Context, userID, concertID string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.IsActive() && b.UserID == userID && b.ConcertID == concertID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r *memoryBookingRepository) ListByUserID(_ context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*booking.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if offset >= len(result) {
		return []*booking.Booking{}, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryBookingRepository) UpdateStatus(_ context.Context, b *booking.Booking, from booking.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[b.ID]
	if !ok || stored.Status != from {
		return booking.ErrNoActiveBooking
	}
	stored.Status = b.Status
	stored.UpdatedAt = b.UpdatedAt
	return nil
}

func (r *memoryBookingRepository) Count(_ context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bookings {
		if b.ConcertID != concertID {
			continue
		}
		if seatTypeID != "" && b.SeatTypeID != seatTypeID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		n++
	}
	return n, nil
}

// recordingPublisher は配信されたイベントを記録する
type recordingPublisher struct {
	mu     sync.Mutex
	events []booking.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, t booking.EventType, data booking.EventData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, booking.NewEnvelope(t, data, time.Now()))
}

func (p *recordingPublisher) Events() []booking.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]booking.Envelope(nil), p.events...)
}
