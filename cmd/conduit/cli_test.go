package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conduit/internal/agent"
	"conduit/internal/workflow"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := `
memory:
  enabled: true
  backend: file
  path: ` + filepath.Join(dir, "memory.json") + `
observability:
  metrics:
    enabled: false
` + extra
	path := filepath.Join(dir, "conduit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunCommandJSON(t *testing.T) {
	cfg := writeConfig(t, "")
	stdout, _, err := execute(t, "--config", cfg, "run", "--format", "json")
	require.NoError(t, err)
	require.Contains(t, stdout, `"status": "success"`)
	require.Contains(t, stdout, "Start today and increase signups with confidence.")

	stdout, _, err = execute(t, "--config", cfg, "history", "list", "--json")
	require.NoError(t, err)
	require.Contains(t, stdout, "marketing.content_outline_generator")

	_, _, err = execute(t, "--config", cfg, "history", "clear", "--yes")
	require.NoError(t, err)
	stdout, _, err = execute(t, "--config", cfg, "history", "latest")
	require.NoError(t, err)
	require.Contains(t, stdout, "No runs recorded.")
}

func TestRunCommandMissingGoalFails(t *testing.T) {
	cfg := writeConfig(t, "")
	stdout, _, err := execute(t, "--config", cfg, "run", "--product", "Tool", "--audience", "students", "--format", "markdown")
	require.EqualError(t, err, "workflow finished with status error")
	require.Contains(t, stdout, "Missing required input field: 'goal'")
}

func TestRunCommandGuardrailAbort(t *testing.T) {
	cfg := writeConfig(t, "guardrail:\n  max_steps: 1\n")
	_, stderr, err := execute(t, "--config", cfg, "run")
	require.EqualError(t, err, "run aborted by guardrail")
	require.Contains(t, stderr, "Workflow exceeded max steps (1)")
}

func TestConfigShow(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("CONDUIT_LLM_PROVIDER", "")
	cfg := writeConfig(t, "")
	stdout, _, err := execute(t, "--config", cfg, "config", "show")
	require.NoError(t, err)
	require.Contains(t, stdout, "# source: "+cfg)
	require.Contains(t, stdout, "provider: gemini")
}

func TestBuildInput(t *testing.T) {
	noPrompt := func(string) (string, error) { return "", errors.New("unexpected prompt") }

	in, err := buildInput(&runOptions{}, noPrompt)
	require.NoError(t, err)
	require.Equal(t, "AI CRM tool", in.Payload["product_description"])
	require.Equal(t, "cli-run", in.Metadata["trace"])

	in, err = buildInput(&runOptions{goal: "Grow", interactive: true}, func(field string) (string, error) {
		return "answer for " + field, nil
	})
	require.NoError(t, err)
	require.Equal(t, "Grow", in.Payload["goal"])
	require.Equal(t, "answer for target_audience", in.Payload["target_audience"])

	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"payload":{"goal":"x"},"metadata":{"trace":"file"}}`), 0o600))
	in, err = buildInput(&runOptions{inputFile: path}, noPrompt)
	require.NoError(t, err)
	require.Equal(t, "file", in.Metadata["trace"])

	require.NoError(t, os.WriteFile(path, []byte(`{"goal":"bare"}`), 0o600))
	in, err = buildInput(&runOptions{inputFile: path}, noPrompt)
	require.NoError(t, err)
	require.Equal(t, "bare", in.Payload["goal"])
}

func TestResultRendering(t *testing.T) {
	end := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	result := &workflow.Result{
		Status: workflow.StatusSuccess,
		FinalOutput: &agent.Output{
			Data: map[string]any{"content_outline": map[string]any{
				"headline":         "Tool helps you grow efficiently.",
				"introduction":     "Are you struggling to grow?",
				"benefits_section": []string{"Solve limited time"},
				"call_to_action":   "Start today and grow with confidence.",
			}},
			Confidence: 0.85,
		},
		History: []agent.RunRecord{{AgentName: "marketing.input_validator", Status: agent.StatusSuccess,
			StartedAt: end.Add(-time.Second), EndedAt: &end}},
	}

	md := resultMarkdown(result)
	require.True(t, strings.HasPrefix(md, "# Tool helps you grow efficiently."))
	require.Contains(t, md, "- Solve limited time")

	pretty := resultPretty(result, false)
	require.Contains(t, pretty, "Status: success")
	require.Contains(t, pretty, "1. marketing.input_validator (1s)")
	require.Contains(t, pretty, "confidence 0.85")

	require.Error(t, renderResult(&bytes.Buffer{}, result, "yaml"))
}
