/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jjudge-oj/roster/config"
	"github.com/jjudge-oj/roster/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the roster HTTP API",
	Long: `Starts the roster HTTP API. Usage:

	roster server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadConfig()
		srv, err := server.New(ctx, cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		errs := make(chan error, 1)
		go func() {
			slog.Info("listening", "addr", srv.Addr(), "store", cfg.Store.Backend)
			errs <- srv.Start()
		}()

		select {
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
