package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/config"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-concert-booking/internal/server"
	"github.com/sanosuguru/go-concert-booking/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env, "notifier")
	defer func() { _ = logger.Sync() }()
	m := metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc := redisinfra.NewClient(&cfg.Redis)
	defer rc.Close()
	if err := redisinfra.Ping(ctx, rc); err != nil {
		logger.Fatal("Redisに接続できません", zap.Error(err))
	}

	consumer := worker.NewBookingEventConsumer(
		redisinfra.NewEventSubscriber(rc, cfg.Events.Channel),
		worker.NewLogNotifier(logger.Get()),
		cfg.Events.FallbackEmail,
	)
	ops := server.NewOpsServer(server.Options{
		Metrics:     m,
		MetricsAuth: cfg.Metrics,
		Health:      []handler.HealthCheck{server.RedisCheck(rc)},
	})

	// 一方が終了したらもう一方も止める
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- consumer.Run(ctx) }()
	go func() { errCh <- server.Run(ctx, ops, cfg.Server) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			logger.Error("通知サービスが異常終了しました", zap.Error(err))
		}
		cancel()
	}
}
