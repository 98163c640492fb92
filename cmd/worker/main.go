package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"todo_app/internal/cache"
	"todo_app/internal/config"
	"todo_app/internal/observability"
	"todo_app/internal/queue"
	"todo_app/internal/session"
	"todo_app/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	if cfg.RabbitMQ.URL == "" {
		logrus.Fatal("RABBITMQ_URL is required for the worker")
	}

	rdb := cache.SetupRedis(&cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close redis connection")
		}
	}()

	conn := queue.SetupRabbitMQ(&cfg.RabbitMQ)
	defer func() {
		if err := conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
		}
	}()

	setupChannel, err := queue.OpenEventsChannel(conn)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open RabbitMQ channel")
	}
	if err := setupChannel.Close(); err != nil {
		logrus.WithError(err).Fatal("Failed to close RabbitMQ channel")
	}

	// Initialize Prometheus metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(reg)
	logrus.Info("Metrics initialized")

	// Start metrics HTTP server for Prometheus scraping
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Worker metrics server started on %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start metrics server")
		}
	}()

	sessions := session.NewManager(
		cache.NewSessionStore(rdb, cfg.Session.TTL),
		session.Options{TTL: cfg.Session.TTL},
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := 1; i <= cfg.Worker.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := worker.StartWorker(ctx, conn, sessions, metrics, id); err != nil {
				logrus.WithError(err).Errorf("Worker %d exited", id)
				stop()
			}
		}(i)
	}

	<-ctx.Done()
	logrus.Info("Shutting down workers...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to stop metrics server")
	}
}
