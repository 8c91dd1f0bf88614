package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	routes.RegisterRoutes(application.Router, application)

	if n, err := application.Engine.ResyncAll(ctx); err != nil {
		logger.Warn("startup resync failed", "error", err)
	} else {
		logger.Info("equipment status resynced", "count", n)
	}

	if every := cfg.Engine.OverdueSweepInterval; every > 0 {
		go runSweeper(ctx, application.Engine, every)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSweeper persists OVERDUE and repairs equipment status until ctx ends.
func runSweeper(ctx context.Context, eng *engine.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if n, err := eng.SweepOverdue(ctx); err != nil {
			logger.Warn("overdue sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("loans marked overdue", "count", n)
		}
		if _, err := eng.ResyncAll(ctx); err != nil {
			logger.Warn("equipment resync failed", "error", err)
		}
	}
}
