/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/spf13/cobra"
)

func parseRecordID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// runDelete performs the two-phase delete, asking for confirmation unless
// --yes was given.
func runDelete[R, P any](cmd *cobra.Command, records *reconcile.Reconciler[R, P], caps policy.Capabilities, id int, describe func(R) string) error {
	req, err := records.RequestDelete(caps, id)
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	question := fmt.Sprintf("Delete %s %s?", records.Kind(), describe(req.Record))
	if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
		if err := records.CancelDelete(req.Token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return nil
	}

	removed, err := records.ConfirmDelete(cmd.Context(), caps, req.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", records.Kind(), describe(removed))
	return nil
}
