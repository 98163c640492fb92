package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo_app/internal/cache"
	"todo_app/internal/config"
	"todo_app/internal/db"
	"todo_app/internal/handler"
	"todo_app/internal/observability"
	"todo_app/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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
	setLogLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logrus.Info(cfg.String())

	database := db.Init(&cfg.DB)
	defer func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database connection")
		}
	}()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = db.Migrate(migrateCtx, database)
	cancel()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	rdb := cache.SetupRedis(&cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close redis connection")
		}
	}()

	// Initialize Prometheus metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	if err := observability.RegisterDBStats(reg, database, cfg.DB.Name); err != nil {
		logrus.WithError(err).Fatal("Failed to register database metrics")
	}
	logrus.Info("Metrics initialized")

	publisher, closePublisher := setupPublisher(cfg, metrics)
	defer closePublisher()

	r, err := handler.SetupHandler(database, rdb, publisher, cfg, metrics, reg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up routes")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	logrus.Info("Server exited")
}

// setupPublisher connects to RabbitMQ when configured. Without a broker,
// account events are dropped.
func setupPublisher(cfg *config.Config, metrics *observability.Metrics) (queue.Publisher, func()) {
	if cfg.RabbitMQ.URL == "" {
		logrus.Warn("RABBITMQ_URL is not set, account events will not be published")
		return queue.NopPublisher{}, func() {}
	}

	conn := queue.SetupRabbitMQ(&cfg.RabbitMQ)
	ch, err := queue.OpenEventsChannel(conn)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open RabbitMQ channel")
	}

	return queue.NewAMQPPublisher(ch, queue.AccountEventsQueue, metrics), func() {
		if err := ch.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ channel")
		}
		if err := conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
		}
	}
}

func setLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
