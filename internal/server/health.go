package server

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
)

func PostgresCheck(db *sqlx.DB) handler.HealthCheck {
	return handler.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error {
		return postgres.Ping(ctx, db)
	}}
}

func RedisCheck(client *redis.Client) handler.HealthCheck {
	return handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return redisinfra.Ping(ctx, client)
	}}
}

// NewOpsServer は /health と /metrics のみを持つサーバーを作成する（常駐ワーカー用）
func NewOpsServer(opts Options) *echo.Echo {
	e, _ := newEcho(opts)
	return e
}
