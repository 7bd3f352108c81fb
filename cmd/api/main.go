package main

import (
	"context"
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
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hmis-api/internal/config"
	appointmentHandler "github.com/jwalitptl/hmis-api/internal/handler/appointment"
	"github.com/jwalitptl/hmis-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/hmis-api/internal/handler/patient"
	promHandler "github.com/jwalitptl/hmis-api/internal/handler/prometheus"
	"github.com/jwalitptl/hmis-api/internal/middleware"
	"github.com/jwalitptl/hmis-api/internal/repository"
	"github.com/jwalitptl/hmis-api/internal/repository/memory"
	"github.com/jwalitptl/hmis-api/internal/repository/postgres"
	"github.com/jwalitptl/hmis-api/internal/router"
	appointmentService "github.com/jwalitptl/hmis-api/internal/service/appointment"
	patientService "github.com/jwalitptl/hmis-api/internal/service/patient"
	"github.com/jwalitptl/hmis-api/internal/worker"
	"github.com/jwalitptl/hmis-api/pkg/auth"
	"github.com/jwalitptl/hmis-api/pkg/logger"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
	"github.com/jwalitptl/hmis-api/pkg/security"
)

const tokenTTL = 24 * time.Hour

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "hmis-api",
		Short:        "Hospital management REST API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			return runServer(cmd.Context(), cfg, withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "run the outbox processor in-process")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			if cfg.Database.Driver == "memory" {
				return errors.New("nothing to migrate for the memory driver")
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(context.Background(), db)
		},
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	}
	return postgres.Open(ctx, cfg)
}

func runServer(parent context.Context, cfg *config.Config, withWorker bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewMetrics("hmis", prometheus.DefaultRegisterer)

	appointmentSvc := appointmentService.NewService(store, cfg.Scheduling, m)
	patientSvc := patientService.NewService(store, security.NewBcryptHasher(cfg.Patients.BcryptCost), cfg.Patients, m)

	checks := map[string]health.Pinger{"database": store}
	if withWorker {
		runner, err := worker.NewRunner(ctx, cfg, store, m, log.Logger)
		if err != nil {
			return err
		}
		defer runner.Close()
		checks["broker"] = runner
		go runner.Run(ctx)
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenTTL), cfg.Auth.Enabled),
		appointmentHandler.NewHandler(appointmentSvc, patientSvc),
		patientHandler.NewHandler(patientSvc),
		health.NewHandler(checks),
		promHandler.New(prometheus.DefaultGatherer, m),
		router.RouterConfig{
			Mode:           serverMode(cfg.Server.Mode),
			RequestTimeout: cfg.Server.RequestTimeout,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RateEnabled:    cfg.RateLimit.Enabled,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func serverMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}
