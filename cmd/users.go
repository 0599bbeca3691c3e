/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jjudge-oj/roster/internal/app"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/types"
	"github.com/spf13/cobra"
)

var userFlags = []flagField{
	{flag: "name", field: "name"},
	{flag: "email", field: "email"},
	{flag: "role", field: "role"},
	{flag: "active", field: "isActive"},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the user directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return listUsers(cmd, a.Users.List())
		})
	},
}

var usersOverlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "List the read-only remote user directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Overlay.Enable(cmd.Context()); err != nil {
				return err
			}
			defer a.Overlay.Disable()
			return listUsers(cmd, a.Users.List())
		})
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user",
	Long: `Add a user. Requires an active admin session.

	roster users add --name "Ann Lee" --email ann@example.com --role Editor
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			f, err := inputs.NewUserForm(inputs.NewUserDefaults())
			if err != nil {
				return err
			}
			var created types.User
			err = submitForm(cmd, f, changedFields(cmd, userFlags), func(ctx context.Context, v inputs.UserForm) error {
				var err error
				created, err = a.Users.Create(ctx, a.Session.Capabilities(), v.Patch(nil))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added user %d %s\n", created.ID, created.Name)
			return nil
		})
	},
}

var usersEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			current, err := a.Users.Get(id)
			if err != nil {
				return err
			}
			f, err := inputs.NewUserForm(inputs.UserFormFrom(current))
			if err != nil {
				return err
			}
			var updated types.User
			err = submitForm(cmd, f, changedFields(cmd, userFlags), func(ctx context.Context, v inputs.UserForm) error {
				var err error
				updated, err = a.Users.Update(ctx, a.Session.Capabilities(), id, v.Patch(f.TouchedFields()))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated user %d %s\n", updated.ID, updated.Name)
			return nil
		})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			return runDelete(cmd, a.Users, a.Session.Capabilities(), id, func(u types.User) string {
				return fmt.Sprintf("%q", u.Name)
			})
		})
	},
}

func listUsers(cmd *cobra.Command, users []types.User) error {
	search, _ := cmd.Flags().GetString("search")
	rawActivity, _ := cmd.Flags().GetString("active")
	activity, err := types.ParseActivityFilter(rawActivity)
	if err != nil {
		return err
	}
	users = types.FilterUsers(users, search, activity)

	return render(cmd.OutOrStdout(), users, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tDEPARTMENT\tLOCATION\tJOINED\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
				u.ID, u.Name, u.Email, u.Role, u.Department, u.Location, u.JoinDate, u.IsActive)
		}
	})
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersOverlayCmd, usersAddCmd, usersEditCmd, usersDeleteCmd)

	for _, c := range []*cobra.Command{usersListCmd, usersOverlayCmd} {
		c.Flags().String("search", "", "Case-insensitive match on name or email")
		c.Flags().String("active", "all", "Filter by activity: all|active|inactive")
	}
	for _, c := range []*cobra.Command{usersAddCmd, usersEditCmd} {
		c.Flags().String("name", "", "Full name")
		c.Flags().String("email", "", "Email address")
		c.Flags().String("role", "", "Role: Admin|Editor|Viewer")
		c.Flags().Bool("active", false, "Whether the account is active")
	}
	usersDeleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
