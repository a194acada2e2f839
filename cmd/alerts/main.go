package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/alerts"
	"github.com/petaldesk/florist-backoffice/internal/config"
	"github.com/petaldesk/florist-backoffice/internal/events"
	kafkax "github.com/petaldesk/florist-backoffice/internal/kafka"
	"github.com/petaldesk/florist-backoffice/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &alerts.Service{
		Redis:       rdb,
		Log:         log,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: cfg.ServiceName + "-alerts",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AlertsGroup, events.TopicStockMovement, cfg.AlertsWorkers, log)

	go func() {
		log.Info("alerts consumer started",
			zap.String("group", cfg.AlertsGroup),
			zap.String("topic", events.TopicStockMovement),
			zap.Int("workers", cfg.AlertsWorkers))
		if err := cons.Start(ctx, svc.HandleMovement); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
