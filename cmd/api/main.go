package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"engage/internal/broker"
	"engage/internal/config"
	"engage/internal/httpapi"
	"engage/internal/logging"
	"engage/internal/observability"
	"engage/internal/service"
	"engage/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	bk, err := broker.Connect(ctx, broker.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Error("api broker connect failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	store := pg.New(db)
	ingest := &service.IngestService{
		Campaigns:     store,
		Broker:        bk,
		CustomerQueue: cfg.CustomerQueue,
		CampaignQueue: cfg.CampaignQueue,
	}
	monitor := &service.MonitorService{
		Broker: bk,
		Logs:   store,
		Queues: []string{cfg.CustomerQueue, cfg.CampaignQueue},
	}

	s := httpapi.New()
	api := &httpapi.API{Ingest: ingest, Monitor: monitor}
	api.Register(s.Router)

	s.Router.HandleFunc("/healthz", httpapi.Healthz())
	s.Router.HandleFunc("/readyz", httpapi.Readyz(2*time.Second,
		func(ctx context.Context) error { return db.Ping(ctx) },
		func(ctx context.Context) error { return bk.HealthCheck(ctx).Err() },
	))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(s.Router),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	_ = bk.Close()
	db.Close()
}
