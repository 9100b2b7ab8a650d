package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/WipBox/config"
	"github.com/BearBump/WipBox/internal/broker/kafka"
	"github.com/BearBump/WipBox/internal/cache/rediscache"
	"github.com/BearBump/WipBox/internal/services/snapshots"
	"github.com/BearBump/WipBox/internal/storage/pgwip"
)

type wipAPIApp struct {
	ctx         context.Context
	cancel      context.CancelFunc
	opts        wipAPIOpts
	svc         *snapshots.Service
	checkpoints *kafka.Consumer
	statuses    *kafka.Consumer
	closeDB     func()
	closeCache  func() error
}

func mustBootstrapWipAPI() *wipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	grpcAddr := cfg.WipBox.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := cfg.WipBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.WipBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "wip-api"
	}
	checkpointTopic := cfg.Kafka.CheckpointRecordedTopicName
	if checkpointTopic == "" {
		checkpointTopic = "checkpoint.recorded"
	}
	statusTopic := cfg.Kafka.StatusExtractedTopicName
	if statusTopic == "" {
		statusTopic = "unit.status.extracted"
	}

	cacheTTL := time.Duration(cfg.WipBox.SnapshotCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rc.Ping(pingCtx); err != nil {
		// кэш не обязателен, чтения пойдут в postgres
		slog.Warn("redis is not reachable", "addr", redisAddr, "error", err.Error())
	}
	pingCancel()

	svc := snapshots.New(st, rc, cacheTTL)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &wipAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: wipAPIOpts{
			grpcAddr:        grpcAddr,
			httpAddr:        httpAddr,
			grpcDialAddr:    grpcAddr,
			swaggerPath:     swaggerPath,
			checkpointTopic: checkpointTopic,
			statusTopic:     statusTopic,
			consumerGroup:   consumerGroup,
		},
		svc:         svc,
		checkpoints: kafka.NewConsumer(brokers, checkpointTopic, consumerGroup),
		statuses:    kafka.NewConsumer(brokers, statusTopic, consumerGroup),
		closeDB:     st.Close,
		closeCache:  rc.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgwip.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgwip.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *wipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.checkpoints != nil {
		_ = a.checkpoints.Close()
	}
	if a.statuses != nil {
		_ = a.statuses.Close()
	}
	if a.closeCache != nil {
		_ = a.closeCache()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *wipAPIApp) Run() error {
	return runWipAPI(a.ctx, a.opts, a.svc, a.checkpoints, a.statuses)
}
