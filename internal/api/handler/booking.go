package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-concert-booking/internal/api"
	"github.com/sanosuguru/go-concert-booking/internal/api/middleware"
	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	ConcertID  string `json:"concertId" validate:"required"`
	SeatTypeID string `json:"seatTypeId" validate:"required"`
}

type CancelBookingRequest struct {
	ConcertID string `json:"concertId" validate:"required"`
}

type BookingResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ConcertID  string    `json:"concertId"`
	SeatTypeID string    `json:"seatTypeId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID: b.ID, UserID: b.UserID, ConcertID: b.ConcertID, SeatTypeID: b.SeatTypeID,
		Status: string(b.Status), CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func userIDFrom(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(middleware.HeaderUserID)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	return userID, nil
}

// Create は座席種別を1席予約する
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID: userID, ConcertID: req.ConcertID, SeatTypeID: req.SeatTypeID,
	})
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Cancel はコンサートに対する自分の有効な予約を取り消す
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	var req CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.CancelBooking(c.Request().Context(), userID, req.ConcertID)
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) GetByID(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	b, err := h.service.GetBooking(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// List は自分の予約を新しい順に返す
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.ListUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return api.ToHTTPError(err)
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Count はコンサート（と座席種別・状態）ごとの予約数を返す
func (h *BookingHandler) Count(c echo.Context) error {
	concertID := c.QueryParam("concertId")
	if concertID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "concertId は必須です")
	}
	n, err := h.service.CountBookings(c.Request().Context(), concertID, c.QueryParam("seatTypeId"), booking.Status(c.QueryParam("status")))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

// Register は予約APIのルートを登録する
func (h *BookingHandler) Register(g *echo.Group) {
	g.POST("/bookings", h.Create)
	g.POST("/bookings/cancel", h.Cancel)
	g.GET("/bookings", h.List)
	g.GET("/bookings/count", h.Count)
	g.GET("/bookings/:id", h.GetByID)
}
