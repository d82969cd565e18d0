package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/api/handler"
	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/config"
	"github.com/sanosuguru/go-concert-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-concert-booking/internal/server"
	"github.com/sanosuguru/go-concert-booking/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env, "concert-api")
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

	concerts := postgres.NewConcertRepository(db)
	seatTypes := postgres.NewSeatTypeRepository(db)
	cache := redisinfra.NewConcertCache(rc, cfg.Cache.TTL, cfg.Cache.UpcomingTTL)
	counter := redisinfra.NewInventoryCounter(rc)

	scheduler := worker.NewDeactivationScheduler(
		concerts,
		redisinfra.NewDeactivationSchedule(rc),
		cache,
		redisinfra.NewLockManager(rc),
		cfg.Scheduler.Interval,
		cfg.Scheduler.LockTTL,
	)
	svc := application.NewConcertService(concerts, seatTypes, cache, scheduler, counter)

	// 既存の座席種別の残席カウンタを用意する（既存の値は保持）
	if _, _, err := application.NewInventorySeeder(seatTypes, counter).SeedAll(ctx); err != nil {
		logger.Error("在庫カウンタの初期化に失敗しました", zap.Error(err))
	}

	go scheduler.Start(ctx)
	defer scheduler.Stop()

	e := server.NewConcertServer(svc, counter, scheduler, server.Options{
		Metrics:     m,
		MetricsAuth: cfg.Metrics,
		Health:      []handler.HealthCheck{server.PostgresCheck(db), server.RedisCheck(rc)},
	})
	if err := server.Run(ctx, e, cfg.Server); err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
	}
}
