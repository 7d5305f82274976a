package main

import (
	"context"
	"fmt"
	"io"

	"conduit/internal/agent"
	"conduit/internal/memory"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func newHistoryCommand(cli *CLI) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect persisted workflow runs",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(cmd.Context(), func(store memory.Store) error {
				runs, err := store.All(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					if runs == nil {
						runs = []memory.Run{}
					}
					return writeJSON(cmd.OutOrStdout(), runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), gray("No runs recorded."))
					return nil
				}
				for _, run := range runs {
					printRunSummary(cmd.OutOrStdout(), run)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Show the most recent run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(cmd.Context(), func(store memory.Store) error {
				run, ok, err := store.Latest(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), gray("No runs recorded."))
					return nil
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), run)
				}
				printRunSummary(cmd.OutOrStdout(), *run)
				for _, rec := range run.Records {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s %s\n", rec.AgentName, statusLabel(rec.Status))
					if rec.Error != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", firstLine(rec.Error))
					}
				}
				return nil
			})
		},
	})

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !isTTY() {
					return fmt.Errorf("refusing to clear history without --yes")
				}
				confirm := promptui.Prompt{Label: "Delete all recorded runs", IsConfirm: true}
				if _, err := confirm.Run(); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), gray("Cancelled."))
					return nil
				}
			}
			return cli.withStore(cmd.Context(), func(store memory.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green("History cleared."))
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(clearCmd)
	return cmd
}

func (cli *CLI) withStore(ctx context.Context, fn func(memory.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cli.config)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printRunSummary(w io.Writer, run memory.Run) {
	status := agent.StatusSuccess
	if n := len(run.Records); n > 0 {
		status = run.Records[n-1].Status
	}
	fmt.Fprintf(w, "%s  %s  %d steps  %s\n",
		cyan(run.RunID), run.Timestamp.Local().Format("2006-01-02 15:04:05"), len(run.Records), statusLabel(status))
}

func statusLabel(status agent.Status) string {
	if status == agent.StatusSuccess {
		return green(string(status))
	}
	return red(string(status))
}
