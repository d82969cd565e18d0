package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/domain/failure"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/httpclient"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
// Category は user / dependency / anomaly のいずれか（呼び出し元の再試行判断用）
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     int    `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Details  string `json:"details,omitempty"`
}

// ステータスコードが分類の既定値と異なるもの
var statusOverrides = []struct {
	err  error
	code int
}{
	{booking.ErrBookingNotFound, http.StatusNotFound},
	{concert.ErrConcertNotFound, http.StatusNotFound},
	{concert.ErrSeatTypeNotFound, http.StatusNotFound},
	{booking.ErrDuplicateBooking, http.StatusConflict},
	{booking.ErrSoldOut, http.StatusConflict},
	{booking.ErrNoActiveBooking, http.StatusConflict},
	{booking.ErrBookingAlreadyCancelled, http.StatusConflict},
	{concert.ErrConcertUnavailable, http.StatusConflict},
	{concert.ErrSeatTypeExhausted, http.StatusConflict},
	{httpclient.ErrNotFound, http.StatusNotFound},
	{httpclient.ErrServiceTimeout, http.StatusGatewayTimeout},
}

// ToHTTPError はアプリケーションのエラーをHTTPエラーに変換する
func ToHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var fe *failure.Error
	if !errors.As(err, &fe) {
		return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
	}

	code := http.StatusInternalServerError
	switch fe.Kind() {
	case failure.KindUser:
		code = http.StatusBadRequest
	case failure.KindDependency, failure.KindAnomaly:
		code = http.StatusServiceUnavailable
	}
	for _, o := range statusOverrides {
		if errors.Is(err, o.err) {
			code = o.code
			break
		}
	}
	return echo.NewHTTPError(code, fe.Error()).SetInternal(err)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := ToHTTPError(err)
	code := he.Code
	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(code)
	}

	resp := ErrorResponse{Error: message, Code: code}
	if kind := failure.KindOf(err); kind != failure.KindUnknown {
		resp.Category = kind.String()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.String("category", resp.Category),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
