package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := cli.config.Marshal()
			if err != nil {
				return err
			}
			source := "built-in defaults and environment"
			if cli.meta.ConfigFile != "" {
				source = cli.meta.ConfigFile
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", gray("# source: "+source))
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			if err := cli.config.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", yellow("Warning:"), err)
			}
			return nil
		},
	})
	return cmd
}
