package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/api"
	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
)

type ConcertHandler struct {
	service   ConcertServiceInterface
	inventory AvailabilityReader
	sweeper   Sweeper
}

// NewConcertHandler は ConcertHandler を作成する
// inventory が nil の場合、座席種別のレスポンスに残席数を含めない
func NewConcertHandler(s ConcertServiceInterface, inventory AvailabilityReader, sweeper Sweeper) *ConcertHandler {
	return &ConcertHandler{service: s, inventory: inventory, sweeper: sweeper}
}

type SeatTypeRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       int    `json:"price" validate:"gte=0"`
	Capacity    int    `json:"capacity" validate:"min=1"`
}

type CreateConcertRequest struct {
	Name        string            `json:"name" validate:"required"`
	Artist      string            `json:"artist"`
	Venue       string            `json:"venue"`
	Description string            `json:"description"`
	StartTime   time.Time         `json:"startTime" validate:"required"`
	EndTime     time.Time         `json:"endTime" validate:"required,gtfield=StartTime"`
	SeatTypes   []SeatTypeRequest `json:"seatTypes" validate:"required,min=1,dive"`
}

// UpdateConcertRequest は部分更新（省略した項目は変更しない）
type UpdateConcertRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1"`
	Artist      *string    `json:"artist"`
	Venue       *string    `json:"venue"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	IsActive    *bool      `json:"isActive"`
}

type CreateSeatTypesRequest struct {
	SeatTypes []SeatTypeRequest `json:"seatTypes" validate:"required,min=1,dive"`
}

type ConcertResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Artist      string    `json:"artist"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsActive    bool      `json:"isActive"`
	SeatTypes   []string  `json:"seatTypes"`
}

type SeatTypeResponse struct {
	ID          string `json:"id"`
	ConcertID   string `json:"concertId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Capacity    int    `json:"capacity"`
	Available   *int   `json:"available,omitempty"`
}

func toConcertResponse(c *concert.Concert) ConcertResponse {
	seatTypes := c.SeatTypeIDs
	if seatTypes == nil {
		seatTypes = []string{}
	}
	return ConcertResponse{
		ID: c.ID, Name: c.Name, Artist: c.Artist, Venue: c.Venue, Description: c.Description,
		StartTime: c.StartTime, EndTime: c.EndTime, IsActive: c.IsActive, SeatTypes: seatTypes,
	}
}

func toSeatTypeResponse(s *concert.SeatType) SeatTypeResponse {
	return SeatTypeResponse{
		ID: s.ID, ConcertID: s.ConcertID, Name: s.Name, Description: s.Description,
		Price: s.Price, Capacity: s.Capacity,
	}
}

func toSeatTypeInputs(reqs []SeatTypeRequest) []application.SeatTypeInput {
	inputs := make([]application.SeatTypeInput, len(reqs))
	for i, r := range reqs {
		inputs[i] = application.SeatTypeInput{Name: r.Name, Description: r.Description, Price: r.Price, Capacity: r.Capacity}
	}
	return inputs
}

func (h *ConcertHandler) Create(c echo.Context) error {
	var req CreateConcertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	created, err := h.service.CreateConcert(c.Request().Context(), application.CreateConcertInput{
		Name: req.Name, Artist: req.Artist, Venue: req.Venue, Description: req.Description,
		StartTime: req.StartTime, EndTime: req.EndTime, SeatTypes: toSeatTypeInputs(req.SeatTypes),
	})
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toConcertResponse(created))
}

func (h *ConcertHandler) GetByID(c echo.Context) error {
	found, err := h.service.GetConcert(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toConcertResponse(found))
}

// ListUpcoming は開始前で受付中のコンサートを開始時刻順に返す
func (h *ConcertHandler) ListUpcoming(c echo.Context) error {
	concerts, err := h.service.ListUpcoming(c.Request().Context())
	if err != nil {
		return api.ToHTTPError(err)
	}
	resp := make([]ConcertResponse, len(concerts))
	for i, v := range concerts {
		resp[i] = toConcertResponse(v)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConcertHandler) Update(c echo.Context) error {
	var req UpdateConcertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	updated, err := h.service.UpdateConcert(c.Request().Context(), application.UpdateConcertInput{
		ID: c.Param("id"),
		Fields: concert.UpdateFields{
			Name: req.Name, Artist: req.Artist, Venue: req.Venue, Description: req.Description,
			StartTime: req.StartTime, EndTime: req.EndTime, IsActive: req.IsActive,
		},
	})
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toConcertResponse(updated))
}

func (h *ConcertHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteConcert(c.Request().Context(), c.Param("id")); err != nil {
		return api.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateSeatTypes は座席種別を追加し、残席カウンタを初期化する
func (h *ConcertHandler) CreateSeatTypes(c echo.Context) error {
	var req CreateSeatTypesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	seatTypes, err := h.service.CreateSeatTypes(c.Request().Context(), c.Param("id"), toSeatTypeInputs(req.SeatTypes))
	if err != nil {
		return api.ToHTTPError(err)
	}
	resp := make([]SeatTypeResponse, len(seatTypes))
	for i, s := range seatTypes {
		resp[i] = toSeatTypeResponse(s)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSeatType はコンサートに属する座席種別を返す
// 残席数は取得できた場合のみ含める
func (h *ConcertHandler) GetSeatType(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.service.GetSeatType(ctx, c.Param("id"), c.Param("seatTypeId"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	resp := toSeatTypeResponse(st)
	if h.inventory != nil {
		if n, err := h.inventory.Available(ctx, st.ConcertID, st.ID); err == nil {
			resp.Available = &n
		} else {
			logger.Warn("残席数の取得に失敗しました", zap.String("seat_type_id", st.ID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Sweep は無効化スイープを即時実行する（運用向け）
func (h *ConcertHandler) Sweep(c echo.Context) error {
	if h.sweeper == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "スケジューラが無効です")
	}
	result, err := h.sweeper.Sweep(c.Request().Context(), time.Now())
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Register はコンサートAPIのルートを登録する
func (h *ConcertHandler) Register(g *echo.Group) {
	g.POST("/concerts", h.Create)
	g.GET("/concerts/upcoming", h.ListUpcoming)
	g.GET("/concerts/:id", h.GetByID)
	g.PATCH("/concerts/:id", h.Update)
	g.DELETE("/concerts/:id", h.Delete)
	g.POST("/concerts/:id/seat-types", h.CreateSeatTypes)
	g.GET("/concerts/:id/seat-types/:seatTypeId", h.GetSeatType)
	g.POST("/admin/sweep", h.Sweep)
}
