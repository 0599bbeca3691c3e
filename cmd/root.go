/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jjudge-oj/roster/config"
	"github.com/jjudge-oj/roster/internal/app"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the roster of users and the shared todo list",
	Long: `Roster keeps a directory of users and a shared todo list on local
storage. Log in once with "roster login"; later commands act as that user and
are limited by its role.

	roster login --email john@example.com
	roster todos add --title "Write spec" --due 2024-06-01
	roster users list --active active
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))
	},
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, config.LoadConfig(), slog.Default())
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close roster", "error", err)
		}
	}()
	return fn(a)
}
