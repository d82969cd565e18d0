package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/config"
	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

// soldOutService は常に売り切れを返す
type soldOutService struct{}

func (soldOutService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	return nil, booking.ErrSoldOut
}

func (soldOutService) CancelBooking(ctx context.Context, userID, concertID string) (*booking.Booking, error) {
	return nil, booking.ErrNoActiveBooking
}

func (soldOutService) GetBooking(ctx context.Context, userID, id string) (*booking.Booking, error) {
	return nil, booking.ErrBookingNotFound
}

func (soldOutService) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	return []*booking.Booking{}, nil
}

func (soldOutService) CountBookings(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	return 0, nil
}

func TestNewBookingServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	e := NewBookingServer(soldOutService{}, Options{
		Metrics:     m,
		Gatherer:    reg,
		MetricsAuth: config.MetricsConfig{User: "prom", Password: "scrape"},
	})

	t.Run("ヘルスチェック", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("予約失敗は分類付きで返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"concertId":"c1","seatTypeId":"vip"}`))
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), `"category":"user"`)
	})

	t.Run("メトリクスは認証必須", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("prom", "scrape")
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	e := NewBookingServer(soldOutService{}, Options{Gatherer: prometheus.NewRegistry()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, e, config.ServerConfig{Port: "0", ReadTimeout: time.Second, WriteTimeout: time.Second})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewOpsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := NewOpsServer(Options{Gatherer: prometheus.NewRegistry(), Health: []handler.HealthCheck{RedisCheck(client)}})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	mr.Close()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
