// Package server は各サービスのEchoサーバーを組み立て、グレースフルシャットダウン付きで起動する。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/api"
	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/api/middleware"
	"github.com/sanosuguru/go-concert-booking/internal/config"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Options はサービス共通のサーバー設定
type Options struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsAuth config.MetricsConfig
	Health      []handler.HealthCheck
}

func newEcho(opts Options) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	if opts.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(opts.Metrics, "/metrics", "/health"))
	}

	e.GET("/health", handler.NewHealthHandler(opts.Health...).Check)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics",
		echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(opts.MetricsAuth),
	)

	return e, e.Group("/api/v1")
}

// NewBookingServer は予約APIのサーバーを作成する
func NewBookingServer(svc handler.BookingServiceInterface, opts Options) *echo.Echo {
	e, v1 := newEcho(opts)
	handler.NewBookingHandler(svc).Register(v1)
	return e
}

// NewConcertServer はコンサートAPIのサーバーを作成する
func NewConcertServer(svc handler.ConcertServiceInterface, inventory handler.AvailabilityReader, sweeper handler.Sweeper, opts Options) *echo.Echo {
	e, v1 := newEcho(opts)
	handler.NewConcertHandler(svc, inventory, sweeper).Register(v1)
	return e
}

// Run はサーバーを起動し、ctx がキャンセルされたらグレースフルシャットダウンする
func Run(ctx context.Context, e *echo.Echo, cfg config.ServerConfig) error {
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("サーバーをシャットダウンしています...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}
