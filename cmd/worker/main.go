package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/hmis-api/internal/config"
	"github.com/jwalitptl/hmis-api/internal/handler/health"
	promHandler "github.com/jwalitptl/hmis-api/internal/handler/prometheus"
	"github.com/jwalitptl/hmis-api/internal/repository/postgres"
	"github.com/jwalitptl/hmis-api/internal/worker"
	"github.com/jwalitptl/hmis-api/pkg/logger"
	"github.com/jwalitptl/hmis-api/pkg/messaging"
	"github.com/jwalitptl/hmis-api/pkg/messaging/redis"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "hmis-worker",
		Short:        "Deliver outbox events and send notifications",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			return run(cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(tailCmd(&configPath))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tailCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print events published on the redis channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			if cfg.Redis.URL == "" {
				return errors.New("redis.url is required to tail events")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker, err := redis.NewRedisBroker(ctx, redis.Config{
				URL:          cfg.Redis.URL,
				MaxRetries:   cfg.Redis.MaxRetries,
				RetryBackoff: cfg.Redis.RetryBackoff,
				PoolSize:     1,
			}, log.Logger, metrics.NewMetrics("hmis_tail", prometheus.NewRegistry()))
			if err != nil {
				return err
			}
			defer broker.Close()

			messages, err := broker.Subscribe(ctx, cfg.Redis.Channel)
			if err != nil {
				return err
			}
			log.Info().Str("channel", cfg.Redis.Channel).Msg("tailing events")

			for raw := range messages {
				var msg messaging.Message
				if err := json.Unmarshal(raw, &msg); err != nil {
					log.Warn().Err(err).Msg("skipping malformed message")
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-28s %s %s\n",
					msg.OccurredAt.Format(time.RFC3339), msg.Type, msg.AggregateID, msg.Payload)
			}
			return nil
		},
	}
}

func run(cfg *config.Config) error {
	if cfg.Database.Driver == "memory" {
		return errors.New("the worker needs a shared database; use serve --with-worker for the memory driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewMetrics("hmis_worker", prometheus.DefaultRegisterer)

	runner, err := worker.NewRunner(ctx, cfg, store, m, log.Logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := healthServer(cfg.Outbox.HealthPort, map[string]health.Pinger{
		"database": store,
		"broker":   runner,
	}, m)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
			stop()
		}
	}()

	log.Info().Int("health_port", cfg.Outbox.HealthPort).Msg("worker started")
	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop health server: %w", err)
	}
	log.Info().Msg("worker stopped")
	return nil
}

func healthServer(port int, checks map[string]health.Pinger, m *metrics.Metrics) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", promHandler.New(prometheus.DefaultGatherer, m).Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
