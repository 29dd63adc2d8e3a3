package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/events"
	"classroom-quiz-service/internal/metrics"
	transport "classroom-quiz-service/internal/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "optional seed YAML applied at startup")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag, seedPath string) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

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

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	hub := events.NewHub()
	defer hub.Close()
	indexer := events.NewIndexer(hub, b.index, logger)
	indexCtx, stopIndexer := context.WithCancel(context.Background())
	defer stopIndexer()
	go indexer.Run(indexCtx)

	catalog := b.catalog(hub, cfg, logger)
	classes, err := catalog.ValidClasses(ctx)
	if err != nil {
		return err
	}
	logger.Info("classes ready", zap.Strings("classes", classes))
	if seedPath != "" {
		if err := applySeedFile(ctx, catalog, seedPath, logger); err != nil {
			return err
		}
	}

	service := app.NewQuizService(b.store, b.pools, hub, logger, app.WithSampleSize(cfg.Quiz.SampleSize))
	m := metrics.New()
	router := transport.NewRouter(
		transport.NewQuizHandler(service, m, logger),
		transport.NewFeedHandler(hub, cfg.Server.AllowedOrigins, logger),
		m,
		cfg.Server.AllowedOrigins,
		logger,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
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
