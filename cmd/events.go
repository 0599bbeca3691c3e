/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jjudge-oj/roster/internal/app"
	"github.com/jjudge-oj/roster/internal/mq"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect record change notifications",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print change notifications as they arrive",
	Long: `Print change notifications as they arrive. Requires EVENTS_BACKEND to be
rabbitmq or pubsub.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(a *app.App) error {
			if a.Events == nil {
				return errors.New("change notifications are disabled; set EVENTS_BACKEND")
			}
			err := a.Events.Subscribe(ctx, a.Config.Events.Channel, func(_ context.Context, msg mq.Message) error {
				var ev reconcile.RecordChanged
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping malformed message %s: %v\n", msg.ID, err)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Op, ev.ID)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
