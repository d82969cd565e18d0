package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
)

func request(e *echo.Echo, method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type concertResp struct {
	ID        string   `json:"id"`
	IsActive  bool     `json:"isActive"`
	SeatTypes []string `json:"seatTypes"`
}

type bookingResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// createConcert は座席種別1つのコンサートを作成し、コンサートIDと座席種別IDを返す
func createConcert(t *testing.T, s *TestServer, start time.Time, capacity int) (string, string) {
	t.Helper()
	rec := request(s.Concert, http.MethodPost, "/api/v1/concerts", map[string]interface{}{
		"name":      "E2E Live",
		"artist":    "E2E Band",
		"venue":     "E2E Hall",
		"startTime": start.UTC().Format(time.RFC3339Nano),
		"endTime":   start.Add(3 * time.Hour).UTC().Format(time.RFC3339Nano),
		"seatTypes": []map[string]interface{}{{"name": "S席", "price": 9000, "capacity": capacity}},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c concertResp
	decode(t, rec, &c)
	require.Len(t, c.SeatTypes, 1)
	return c.ID, c.SeatTypes[0]
}

func book(s *TestServer, userID, concertID, seatTypeID string) *httptest.ResponseRecorder {
	return request(s.Booking, http.MethodPost, "/api/v1/bookings", map[string]string{
		"concertId": concertID, "seatTypeId": seatTypeID,
	}, userID)
}

func TestE2E_HealthCheck(t *testing.T) {
	s := getTestServer(t)

	for name, e := range map[string]*echo.Echo{"booking": s.Booking, "concert": s.Concert} {
		t.Run(name, func(t *testing.T) {
			rec := request(e, http.MethodGet, "/health", nil, "")
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

// TestE2E_BookingJourney は 予約 → 売り切れ → キャンセル → 再予約 の流れを確認する
func TestE2E_BookingJourney(t *testing.T) {
	s := getTestServer(t)
	concertID, seatTypeID := createConcert(t, s, time.Now().Add(24*time.Hour), 2)
	var firstBookingID string

	t.Run("U1が予約できる", func(t *testing.T) {
		rec := book(s, "u1", concertID, seatTypeID)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var b bookingResp
		decode(t, rec, &b)
		assert.Equal(t, "ACTIVE", b.Status)
		firstBookingID = b.ID
	})

	t.Run("同じユーザーの二重予約は409", func(t *testing.T) {
		rec := book(s, "u1", concertID, seatTypeID)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("U2が最後の1席を予約できる", func(t *testing.T) {
		rec := book(s, "u2", concertID, seatTypeID)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("U3は売り切れ", func(t *testing.T) {
		rec := book(s, "u3", concertID, seatTypeID)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), booking.ErrSoldOut.Error())
	})

	t.Run("U1がキャンセルすると1席戻る", func(t *testing.T) {
		rec := request(s.Booking, http.MethodPost, "/api/v1/bookings/cancel", map[string]string{"concertId": concertID}, "u1")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = request(s.Concert, http.MethodGet, fmt.Sprintf("/api/v1/concerts/%s/seat-types/%s", concertID, seatTypeID), nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var st struct {
			Available *int `json:"available"`
		}
		decode(t, rec, &st)
		require.NotNil(t, st.Available)
		assert.Equal(t, 1, *st.Available)
	})

	t.Run("U3が予約できる", func(t *testing.T) {
		rec := book(s, "u3", concertID, seatTypeID)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("有効な予約数は座席数と一致", func(t *testing.T) {
		rec := request(s.Booking, http.MethodGet, "/api/v1/bookings/count?concertId="+concertID+"&status=ACTIVE", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"count":2}`, rec.Body.String())
	})

	t.Run("予約とキャンセルのイベントが通知される", func(t *testing.T) {
		require.Eventually(t, func() bool {
			_, created := s.Events.find(booking.EventCreated, firstBookingID)
			_, cancelled := s.Events.find(booking.EventCancelled, firstBookingID)
			return created && cancelled
		}, 3*time.Second, 50*time.Millisecond)

		created, _ := s.Events.find(booking.EventCreated, firstBookingID)
		assert.Equal(t, "u1@example.com", *created.Data.Email)
		cancelled, _ := s.Events.find(booking.EventCancelled, firstBookingID)
		assert.Equal(t, "fallback@example.com", *cancelled.Data.Email)
	})
}

// TestE2E_ConcurrentBookings は同時予約でも座席数を超えないことを確認する
func TestE2E_ConcurrentBookings(t *testing.T) {
	s := getTestServer(t)
	const capacity, users = 5, 30
	concertID, seatTypeID := createConcert(t, s, time.Now().Add(24*time.Hour), capacity)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := book(s, fmt.Sprintf("user-%d", i), concertID, seatTypeID)
			if rec.Code == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, created)

	rec := request(s.Booking, http.MethodGet, "/api/v1/bookings/count?concertId="+concertID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"count":%d}`, capacity), rec.Body.String())
}

// TestE2E_ScheduledDeactivation は開始時刻を過ぎたコンサートが予約できなくなることを確認する
func TestE2E_ScheduledDeactivation(t *testing.T) {
	s := getTestServer(t)
	concertID, seatTypeID := createConcert(t, s, time.Now().Add(time.Second), 10)

	// キャッシュに載せておく
	rec := request(s.Concert, http.MethodGet, "/api/v1/concerts/"+concertID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(1500 * time.Millisecond)

	rec = request(s.Concert, http.MethodPost, "/api/v1/admin/sweep", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Deactivated []string `json:"deactivated"`
	}
	decode(t, rec, &result)
	assert.Contains(t, result.Deactivated, concertID)

	rec = request(s.Concert, http.MethodGet, "/api/v1/concerts/"+concertID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var c concertResp
	decode(t, rec, &c)
	assert.False(t, c.IsActive)

	rec = book(s, "late-user", concertID, seatTypeID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
