package main

import (
	"os"

	"conduit/internal/config"
	"conduit/internal/logging"
	"conduit/internal/observability"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CLI holds state shared by the subcommands.
type CLI struct {
	configPath string
	verbose    bool
	debug      bool

	config config.Config
	meta   config.Metadata
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	cli := &CLI{}
	rootCmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Run multi-agent marketing workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Config file (default ./conduit.yaml or ~/.conduit/conduit.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&cli.debug, "debug", "d", false, "Debug logging")

	rootCmd.AddCommand(newRunCommand(cli))
	rootCmd.AddCommand(newHistoryCommand(cli))
	rootCmd.AddCommand(newServeCommand(cli))
	rootCmd.AddCommand(newConfigCommand(cli))
	return rootCmd
}

// initialize loads configuration and installs the process logger.
func (cli *CLI) initialize() error {
	var opts []config.Option
	if cli.configPath != "" {
		opts = append(opts, config.WithConfigPath(cli.configPath))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return err
	}

	logConfig := cfg.Observability.Logging
	switch {
	case cli.debug:
		logConfig.Level = "debug"
	case cli.verbose:
		logConfig.Level = "info"
	case logConfig.Level == "" || logConfig.Level == "info":
		logConfig.Level = "warn"
	}
	cfg.Observability.Logging = logConfig
	logging.SetBase(observability.NewLogger(logConfig))

	cli.config = cfg
	cli.meta = meta
	return nil
}
