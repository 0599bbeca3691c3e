/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jjudge-oj/roster/internal/app"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/internal/session"
	"github.com/jjudge-oj/roster/types"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as a roster user",
	Long: `Log in as a roster user. Missing flags are prompted for.

	roster login --email john@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if email == "" {
			email = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Email")
		}
		if password == "" {
			password = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Password")
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			f, err := inputs.NewLoginForm()
			if err != nil {
				return err
			}

			var user types.User
			err = submitForm(cmd, f, map[string]any{"email": email, "password": password},
				func(ctx context.Context, v inputs.LoginForm) error {
					var err error
					user, err = a.Session.Login(ctx, session.Credentials{
						Email:    strings.TrimSpace(v.Email),
						Password: v.Password,
					})
					return err
				})
			if errors.Is(err, session.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Name, user.Role)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

type whoami struct {
	User         types.User          `json:"user" yaml:"user"`
	Capabilities policy.Capabilities `json:"capabilities" yaml:"capabilities"`
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user and what it may do",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			user, ok := a.Session.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			caps := a.Session.Capabilities()
			return render(cmd.OutOrStdout(), whoami{User: user, Capabilities: caps}, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "NAME\t%s\n", user.Name)
				fmt.Fprintf(tw, "EMAIL\t%s\n", user.Email)
				fmt.Fprintf(tw, "ROLE\t%s\n", user.Role)
				fmt.Fprintf(tw, "ACTIVE\t%t\n", user.IsActive)
				fmt.Fprintf(tw, "CAN CREATE\t%t\n", caps.CanCreate)
				fmt.Fprintf(tw, "CAN EDIT\t%t\n", caps.CanEditOthers)
				fmt.Fprintf(tw, "CAN UPDATE STATUS\t%t\n", caps.CanUpdateStatus)
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password")
}
