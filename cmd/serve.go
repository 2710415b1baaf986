package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"streamvault/internal/configuration"
	"streamvault/internal/logging"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vault",
	Long: `Start the vault: load the last snapshot, begin periodic saving and
backups, and accept WebSocket clients until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg, err := configuration.Load(configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(cfg.App.LogLevel)
	slog.Info("starting vault", "version", version, "profile", cfg.App.Profile)

	services, err := NewServices(cfg)
	if err != nil {
		return err
	}
	if err := services.Start(ctx); err != nil {
		return err
	}

	slog.Info("vault ready", "addr", services.Transport.Addr(), "path", cfg.Transport.Path)
	<-ctx.Done()

	slog.Info("shutting down vault", "timeout", cfg.Storage.ShutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Storage.ShutdownTimeout)
	defer shutdownCancel()

	return services.Shutdown(shutdownCtx)
}
