/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jjudge-oj/roster/internal/app"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/types"
	"github.com/spf13/cobra"
)

var todoFlags = []flagField{
	{flag: "title", field: "title"},
	{flag: "description", field: "description"},
	{flag: "due", field: "dueDate"},
	{flag: "category", field: "category"},
	{flag: "priority", field: "priority"},
}

var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "Manage the shared todo list",
}

var todosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawStatus, _ := cmd.Flags().GetString("status")
		var want types.Status
		if rawStatus != "" {
			var err error
			if want, err = parseStatus(rawStatus); err != nil {
				return err
			}
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			todos := a.Todos.List()
			if want != "" {
				filtered := todos[:0]
				for _, t := range todos {
					if t.Status == want {
						filtered = append(filtered, t)
					}
				}
				todos = filtered
			}

			return render(cmd.OutOrStdout(), todos, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tTITLE\tDUE\tCATEGORY\tPRIORITY\tSTATUS")
				for _, t := range todos {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.DueDate, t.Category, t.Priority, t.Status)
				}
			})
		})
	},
}

var todosAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a todo",
	Long: `Add a todo. Requires an active admin session.

	roster todos add --title "Write spec" --due 2024-06-01 --priority High
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			f, err := inputs.NewTodoForm(inputs.NewTodoDefaults())
			if err != nil {
				return err
			}
			var created types.TodoItem
			err = submitForm(cmd, f, changedFields(cmd, todoFlags), func(ctx context.Context, v inputs.TodoForm) error {
				var err error
				created, err = a.Todos.Create(ctx, a.Session.Capabilities(), v.Patch(nil))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added todo %d %q\n", created.ID, created.Title)
			return nil
		})
	},
}

var todosEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			current, err := a.Todos.Get(id)
			if err != nil {
				return err
			}
			f, err := inputs.NewTodoForm(inputs.TodoFormFrom(current))
			if err != nil {
				return err
			}
			var updated types.TodoItem
			err = submitForm(cmd, f, changedFields(cmd, todoFlags), func(ctx context.Context, v inputs.TodoForm) error {
				var err error
				updated, err = a.Todos.Update(ctx, a.Session.Capabilities(), id, v.Patch(f.TouchedFields()))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated todo %d %q\n", updated.ID, updated.Title)
			return nil
		})
	},
}

var todosStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Move a todo to another status",
	Long: `Move a todo to another status. Any logged-in user may do this.

	roster todos status 1718000000000 "In Progress"
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
		status, err := parseStatus(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			updated, err := a.Todos.Update(cmd.Context(), a.Session.Capabilities(), id, types.TodoPatch{Status: &status})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q is now %s\n", updated.Title, updated.Status)
			return nil
		})
	},
}

var todosDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			return runDelete(cmd, a.Todos, a.Session.Capabilities(), id, func(t types.TodoItem) string {
				return fmt.Sprintf("%q", t.Title)
			})
		})
	},
}

var todosSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty todo list from the remote demo endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			n, err := a.Seeder.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Todo list already has items; nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d todos\n", n)
			return nil
		})
	},
}

// parseStatus matches a status case-insensitively.
func parseStatus(raw string) (types.Status, error) {
	for _, s := range types.Statuses {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

func init() {
	rootCmd.AddCommand(todosCmd)
	todosCmd.AddCommand(todosListCmd, todosAddCmd, todosEditCmd, todosStatusCmd, todosDeleteCmd, todosSeedCmd)

	todosListCmd.Flags().String("status", "", "Only show todos with this status")
	for _, c := range []*cobra.Command{todosAddCmd, todosEditCmd} {
		c.Flags().String("title", "", "Title")
		c.Flags().String("description", "", "Description")
		c.Flags().String("due", "", "Due date (YYYY-MM-DD)")
		c.Flags().String("category", "", "Category")
		c.Flags().String("priority", "", "Priority: Low|Medium|High")
	}
	todosDeleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
