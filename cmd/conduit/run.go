package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"conduit/internal/agent"
	"conduit/internal/domains/marketing"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/jsonx"
	"conduit/internal/workflow"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

type runOptions struct {
	product     string
	audience    string
	goal        string
	inputFile   string
	interactive bool
	format      string
	timeout     time.Duration
}

func newRunCommand(cli *CLI) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the marketing workflow",
		Long: `Run the marketing workflow once and print the result.

Without input flags the sample request (AI CRM tool for SaaS founders) is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if opts.timeout > 0 {
				var stop context.CancelFunc
				ctx, stop = context.WithTimeout(ctx, opts.timeout)
				defer stop()
			}
			return cli.runWorkflow(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.product, "product", "", "Product description")
	cmd.Flags().StringVar(&opts.audience, "audience", "", "Target audience")
	cmd.Flags().StringVar(&opts.goal, "goal", "", "Campaign goal")
	cmd.Flags().StringVarP(&opts.inputFile, "input", "f", "", "JSON file with {payload, metadata} or a bare payload")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for missing fields")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatPretty, "Output format: pretty, json or markdown")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long")
	return cmd
}

func (cli *CLI) runWorkflow(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	in, err := buildInput(opts, promptField)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cli.config)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	result, err := a.runner.Run(ctx, in)
	if err != nil {
		if conduiterrors.IsGuardrailViolation(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", yellow("Guardrail:"), err)
			return errors.New("run aborted by guardrail")
		}
		return err
	}

	if err := renderResult(cmd.OutOrStdout(), result, opts.format); err != nil {
		return err
	}
	if result.Status != workflow.StatusSuccess {
		return fmt.Errorf("workflow finished with status %s", result.Status)
	}
	return nil
}

// buildInput assembles the initial input from --input, the field flags and,
// when interactive, prompts for what is still missing.
func buildInput(opts *runOptions, prompt func(field string) (string, error)) (agent.Input, error) {
	metadata := map[string]any{"trace": "cli-run"}

	if opts.inputFile != "" {
		data, err := os.ReadFile(opts.inputFile)
		if err != nil {
			return agent.Input{}, fmt.Errorf("read input: %w", err)
		}
		var raw map[string]any
		if err := jsonx.Unmarshal(data, &raw); err != nil {
			return agent.Input{}, fmt.Errorf("parse input: %w", err)
		}
		if _, wrapped := raw["payload"]; wrapped {
			return agent.DecodeInput(raw)
		}
		return agent.NewInput(raw, metadata), nil
	}

	payload := map[string]any{}
	for field, value := range map[string]string{
		"product_description": opts.product,
		"target_audience":     opts.audience,
		"goal":                opts.goal,
	} {
		if strings.TrimSpace(value) != "" {
			payload[field] = value
		}
	}

	if len(payload) == 0 && !opts.interactive {
		return marketing.SampleInput(), nil
	}
	if opts.interactive {
		for _, field := range marketing.RequiredFields {
			if _, ok := payload[field]; ok {
				continue
			}
			value, err := prompt(field)
			if err != nil {
				return agent.Input{}, err
			}
			payload[field] = value
		}
	}
	return agent.NewInput(payload, metadata), nil
}

func promptField(field string) (string, error) {
	p := promptui.Prompt{
		Label: strings.ReplaceAll(field, "_", " "),
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}
	value, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", field, err)
	}
	return value, nil
}
