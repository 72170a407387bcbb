package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magiconsole/magi/internal/app"
	"github.com/magiconsole/magi/internal/observability"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

SIGINT or SIGTERM stops accepting requests and waits up to
server.shutdown_timeout for in-flight requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("initializing server",
			zap.String("version", versionInfo.Version),
			zap.String("commit", versionInfo.Commit),
			zap.String("addr", cfg.Server.Addr),
		)

		a, err := app.New(ctx, cfg, logger, versionInfo.Version)
		if err != nil {
			logger.Error("failed to assemble console", zap.Error(err))
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn("close backends", zap.Error(err))
			}
		}()

		if err := a.Run(ctx); err != nil {
			logger.Error("server stopped with error", zap.Error(err))
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

// background is used by commands that do not need signal handling.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
