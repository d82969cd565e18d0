package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/config"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/auth"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/httpclient"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-concert-booking/internal/server"
	"github.com/sanosuguru/go-concert-booking/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env, "booking-api")
	defer func() { _ = logger.Sync() }()
	m := metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベースに接続できません", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	rc := redisinfra.NewClient(&cfg.Redis)
	defer rc.Close()
	if err := redisinfra.Ping(ctx, rc); err != nil {
		logger.Fatal("Redisに接続できません", zap.Error(err))
	}

	// 連携サービス
	tokens := auth.NewServiceTokenProvider(cfg.Auth.JWTSecret, cfg.App.ServiceName, cfg.Auth.ServiceTokenTTL)
	concerts := httpclient.NewConcertClient(
		httpclient.New(cfg.Services.ConcertURL, "concert", cfg.App.ServiceName, cfg.Services.RequestTimeout, tokens),
	)
	users := httpclient.NewUserClient(
		httpclient.New(cfg.Services.UserURL, "user", cfg.App.ServiceName, cfg.Services.RequestTimeout, tokens),
	)

	// イベント配信先
	sinks := []application.EventSink{redisinfra.NewEventPublisher(rc, cfg.Events.Channel)}
	if cfg.Events.AMQPURL != "" {
		pub, err := rabbitmq.Dial(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
		if err != nil {
			logger.Warn("RabbitMQに接続できないためRedisのみに配信します", zap.Error(err))
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	bookings := postgres.NewBookingRepository(db)
	counter := redisinfra.NewInventoryCounter(rc)
	svc := application.NewBookingService(
		bookings,
		application.NewBookingValidator(concerts),
		counter,
		users,
		application.NewEventFanout(sinks...),
	)

	reconciler := worker.NewInventoryReconciler(postgres.NewSeatTypeRepository(db), bookings, counter, cfg.Inventory.ReconcileInterval)
	go reconciler.Start(ctx)
	defer reconciler.Stop()

	e := server.NewBookingServer(svc, server.Options{
		Metrics:     m,
		MetricsAuth: cfg.Metrics,
		Health:      []handler.HealthCheck{server.PostgresCheck(db), server.RedisCheck(rc)},
	})
	if err := server.Run(ctx, e, cfg.Server); err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
	}
}
