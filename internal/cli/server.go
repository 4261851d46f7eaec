package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/logging"
	"quiz-attempt-service/internal/metrics"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	policy, err := app.ParseResubmitPolicy(cfg.Attempt.Resubmit)
	if err != nil {
		return err
	}
	storeTimeout, err := config.Duration(cfg.Attempt.StoreTimeout, 5*time.Second)
	if err != nil {
		return fmt.Errorf("attempt.storeTimeout: %w", err)
	}

	stores, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	attempts := app.NewAttemptService(stores.catalog, stores.attempts, stores.events, app.AttemptOptions{
		Resubmit:     policy,
		StoreTimeout: storeTimeout,
		Logger:       logger.Named("attempts"),
		Metrics:      m,
	})
	quizzes := app.NewQuizService(stores.catalog, logger.Named("quizzes"))

	router := transport.NewRouter(transport.Deps{
		Attempts:       attempts,
		Quizzes:        quizzes,
		Logger:         logger.Named("http"),
		Metrics:        m,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: attempt sockets are long-lived; REST handlers
		// are bounded by the router's timeout middleware.
	}

	go func() {
		logger.Info("starting quiz attempt service",
			zap.String("addr", server.Addr),
			zap.String("resubmit", string(policy)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
