package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"engage/internal/broker"
	"engage/internal/config"
	"engage/internal/consumer"
	"engage/internal/delivery"
	"engage/internal/httpapi"
	"engage/internal/logging"
	"engage/internal/observability"
	"engage/internal/store/pg"
	"engage/internal/vendor"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := pg.New(db)

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}

	bk, err := broker.Connect(startupCtx, broker.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Error("broker not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	// Vendor simulator feeding receipts straight back into the log store.
	receipts := &delivery.ReceiptProcessor{Store: store}
	sim := vendor.NewSimulator(vendor.Config{
		SuccessRate:     cfg.VendorSuccessRate,
		SendDelayMin:    time.Duration(cfg.VendorSendDelayMinMs) * time.Millisecond,
		SendDelayMax:    time.Duration(cfg.VendorSendDelayMaxMs) * time.Millisecond,
		ReceiptDelayMin: time.Duration(cfg.VendorReceiptDelayMinMs) * time.Millisecond,
		ReceiptDelayMax: time.Duration(cfg.VendorReceiptDelayMaxMs) * time.Millisecond,
		StaggerMin:      time.Duration(cfg.VendorStaggerMinMs) * time.Millisecond,
		StaggerMax:      time.Duration(cfg.VendorStaggerMaxMs) * time.Millisecond,
	}, receipts)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "vendor",
		Timeout: time.Duration(cfg.VendorBreakerResetMs) * time.Millisecond,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.VendorBreakerFails
		},
	})

	engine := &delivery.Engine{
		Store:           store,
		Vendor:          sim,
		Breaker:         breaker,
		BatchSize:       cfg.DeliveryBatchSize,
		InterBatchDelay: time.Duration(cfg.InterBatchDelayMs) * time.Millisecond,
	}

	customers := &consumer.CustomerConsumer{
		Store:           store,
		Events:          bk,
		ImportBatchSize: cfg.ImportBatchSize,
	}
	campaigns := &consumer.CampaignConsumer{
		Users:  store,
		Engine: engine,
		Events: bk,
	}

	wait := time.Duration(cfg.DequeueWaitSeconds) * time.Second
	retry := time.Duration(cfg.BrokerRetrySeconds) * time.Second
	loops := []*consumer.Loop{
		{Queue: cfg.CustomerQueue, Handler: customers.Handle, Jobs: bk, WaitTimeout: wait, RetryDelay: retry},
		{Queue: cfg.CampaignQueue, Handler: campaigns.Handle, Jobs: bk, WaitTimeout: wait, RetryDelay: retry},
	}

	// Audit subscriber: every domain event lands in the worker log.
	dispatcher := consumer.NewDispatcher(bk)
	audit := func(ctx context.Context, ev broker.Event) {
		slog.Info("event observed", "type", ev.Type, "id", ev.ID, "published_at", ev.PublishedAt)
	}
	for _, ch := range []string{
		consumer.EventCustomerCreated, consumer.EventCustomerCreateFailed,
		consumer.EventCustomerUpdated, consumer.EventCustomerUpdateFailed,
		consumer.EventCustomerDeleted, consumer.EventCustomerDeleteFailed,
		consumer.EventImportCompleted, consumer.EventImportFailed,
		consumer.EventStatsUpdated, consumer.EventStatsUpdateFailed,
		consumer.EventCampaignCompleted, consumer.EventCampaignDeliverFailed,
	} {
		dispatcher.On(ch, audit)
	}

	// Health server: liveness, readiness, metrics, vendor stats.
	s := httpapi.New()
	s.Router.HandleFunc("/healthz", httpapi.Healthz())
	s.Router.HandleFunc("/readyz", httpapi.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error { return bk.HealthCheck(c).Err() },
	))
	s.Router.HandleFunc("/v1/vendor/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sim.Stats())
	}).Methods(http.MethodGet)
	wh := &httpapi.Webhook{Receipts: receipts}
	wh.Register(s.Router)

	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(s.Router),
	}
	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	runErrCh := make(chan error, len(loops)+1)
	for _, l := range loops {
		go func(l *consumer.Loop) {
			slog.Info("worker loop starting", "queue", l.Queue)
			runErrCh <- l.Run(ctx)
		}(l)
	}
	go func() {
		slog.Info("worker dispatcher starting")
		runErrCh <- dispatcher.Run(ctx)
	}()
	running := len(loops) + 1

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErrCh:
		running--
		if err != nil && err != context.Canceled {
			slog.Error("worker run failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	drain := time.After(10 * time.Second)
	for running > 0 {
		select {
		case <-runErrCh:
			running--
		case <-drain:
			slog.Info("worker shutdown timeout waiting for loops")
			running = 0
		}
	}

	// Flush in-flight vendor receipts before dropping connections.
	sim.Close()
	_ = bk.Close()
}
