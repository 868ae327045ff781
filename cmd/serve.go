package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/team-pr-stats/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP service",
	Long:  `Runs the HTTP service exposing GET / and POST /github-stats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := newLogger(cmd)
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		aggregator, err := newAggregator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		handler := httpapi.NewHandler(aggregator, logger, cfg.CORSOrigins)

		server := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting http server", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", slog.Any("err", err))
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", slog.Any("err", err))
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides PORT, default 3001)")
}
