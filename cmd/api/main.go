package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/catalog"
	"github.com/petaldesk/florist-backoffice/internal/config"
	"github.com/petaldesk/florist-backoffice/internal/coupon"
	"github.com/petaldesk/florist-backoffice/internal/customer"
	"github.com/petaldesk/florist-backoffice/internal/events"
	"github.com/petaldesk/florist-backoffice/internal/httpx"
	kafkax "github.com/petaldesk/florist-backoffice/internal/kafka"
	"github.com/petaldesk/florist-backoffice/internal/orders"
	"github.com/petaldesk/florist-backoffice/internal/postgres"
	"github.com/petaldesk/florist-backoffice/internal/redisx"
	"github.com/petaldesk/florist-backoffice/internal/stock"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pOrders := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCreated, 1024, log)
	pOrders.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderStatusChanged, 1024, log)
	pStatus.Start(ctx)
	pStock := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStockMovement, 1024, log)
	pStock.Start(ctx)

	catalogRepo := &catalog.Repo{DB: db}
	ledger := &stock.Ledger{Pool: db}
	engine := &coupon.Engine{Pool: db}
	customers := &customer.Store{Pool: db}
	orderRepo := &orders.Repo{Pool: db}

	svc := &orders.Service{
		DB:             db,
		Reader:         db,
		Orders:         orderRepo,
		Catalog:        catalogRepo,
		Stock:          ledger,
		Coupons:        engine,
		Customers:      customers,
		OrderProducer:  pOrders,
		StatusProducer: pStatus,
		StockProducer:  pStock,
		Log:            log,
		NumberPrefix:   cfg.OrderNumberPrefix,
		ServiceName:    cfg.ServiceName,
		StrictCoupons:  cfg.StrictCoupons,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Redis: rdb, Log: log}).Register(router)
	(&httpx.CouponsHandler{Engine: engine, DB: db, Log: log}).Register(router)
	(&httpx.CustomersHandler{Store: customers, Log: log}).Register(router)
	(&httpx.StockHandler{
		Ledger:           ledger,
		Catalog:          catalogRepo,
		Service:          svc,
		Log:              log,
		DefaultThreshold: cfg.LowStockThreshold,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	// close inboxes so the producer goroutines flush remaining events
	pOrders.Close()
	pStatus.Close()
	pStock.Close()
	pOrders.WaitClosed()
	pStatus.WaitClosed()
	pStock.WaitClosed()
}
