package marketing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/guardrail"
	"conduit/internal/llm"
	"conduit/internal/logging"
	"conduit/internal/memory"
	"conduit/internal/tokenutil"
	"conduit/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleAgents(t *testing.T) Agents {
	t.Helper()
	agents, err := NewAgents(Options{AgentOptions: []agent.Option{agent.WithLogger(logging.Nop())}})
	require.NoError(t, err)
	return agents
}

func newRunner(t *testing.T, deps Deps) *Runner {
	t.Helper()
	if deps.Agents.InputValidator == nil {
		deps.Agents = ruleAgents(t)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	runner, err := NewRunner(deps)
	require.NoError(t, err)
	return runner
}

func TestMarketingWorkflowSucceeds(t *testing.T) {
	result, err := newRunner(t, Deps{}).Run(context.Background(), SampleInput())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)
	require.Len(t, result.History, 4)

	names := []string{InputValidatorName, AudienceAnalyzerName, ValuePropositionName, ContentOutlineName}
	for i, rec := range result.History {
		assert.Equal(t, names[i], rec.AgentName)
		assert.Equal(t, agent.StatusSuccess, rec.Status)
	}

	outline, ok := result.FinalOutput.Data["content_outline"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "AI CRM tool helps you increase signups efficiently.", outline["headline"])
	require.Equal(t, "Are you struggling to increase signups?", outline["introduction"])
	require.Equal(t, []string{"Solve limited time", "Enable growth and scalability"}, outline["benefits_section"])
	require.Contains(t, outline["call_to_action"], "increase signups")
	require.Equal(t, 0.85, result.FinalOutput.Confidence)
	require.Equal(t, ContentOutlineName, result.FinalOutput.Metadata["generated_by"])
}

func TestMarketingWorkflowCarriesOnlyPreviousAgentMetadata(t *testing.T) {
	result, err := newRunner(t, Deps{}).Run(context.Background(), SampleInput())
	require.NoError(t, err)

	first := result.History[0].Input["metadata"].(map[string]any)
	require.Equal(t, "cli-run", first["trace"])
	second := result.History[1].Input["metadata"].(map[string]any)
	require.Equal(t, map[string]any{"previous_agent": InputValidatorName}, second)
}

func TestMarketingWorkflowMissingGoal(t *testing.T) {
	in := agent.NewInput(map[string]any{
		"product_description": "AI CRM tool",
		"target_audience":     "SaaS founders",
	}, nil)

	result, err := newRunner(t, Deps{}).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusError, result.Status)
	require.Len(t, result.History, 1)
	require.Equal(t, agent.StatusError, result.History[0].Status)
	require.True(t, strings.HasPrefix(result.History[0].Error, "InputValidationError: Missing required input field: 'goal'\n"), result.History[0].Error)
	require.Zero(t, result.FinalOutput.Confidence)
}

func TestMarketingWorkflowGuardrailMaxSteps(t *testing.T) {
	store, err := memory.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	result, err := newRunner(t, Deps{
		Guardrail: guardrail.Config{MaxSteps: 1},
		Store:     store,
	}).Run(context.Background(), SampleInput())
	require.Nil(t, result)

	var violation *conduiterrors.GuardrailViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "Workflow exceeded max steps (1)", violation.Message)

	runs, err := store.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestMarketingWorkflowPersistsHistory(t *testing.T) {
	store, err := memory.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	_, err = newRunner(t, Deps{Store: store}).Run(context.Background(), SampleInput())
	require.NoError(t, err)

	latest, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, latest.Records, 4)
}

func TestAnalyzeAudience(t *testing.T) {
	founder := analyzeAudience("SaaS Founders")
	require.Equal(t, []string{"limited time"}, founder.PainPoints)
	require.Equal(t, "confident", founder.Tone)

	both := analyzeAudience("student founders")
	require.Equal(t, []string{"limited time", "budget constraints"}, both.PainPoints)
	require.Equal(t, "encouraging", both.Tone)

	general := analyzeAudience("retail managers")
	require.Equal(t, []string{"general inefficiency"}, general.PainPoints)
	require.Equal(t, []string{"improved outcomes"}, general.Motivations)
	require.Equal(t, "professional", general.Tone)
}

func TestInputValidatorTrimsFields(t *testing.T) {
	agents := ruleAgents(t)
	out, rec := agents.InputValidator.Run(context.Background(), agent.NewInput(map[string]any{
		"product_description": "  AI CRM tool ",
		"target_audience":     "founders\n",
		"goal":                " Grow ",
	}, nil), nil)
	require.Equal(t, agent.StatusSuccess, rec.Status)
	require.Equal(t, map[string]any{
		"product_description": "AI CRM tool",
		"target_audience":     "founders",
		"goal":                "Grow",
	}, out.Data["validated_input"])
}

func TestContentOutlineDefaultsGoal(t *testing.T) {
	agents := ruleAgents(t)
	out, rec := agents.ContentOutline.Run(context.Background(),
		agent.NewInput(map[string]any{"core_message": "Ship faster."}, nil), nil)
	require.Equal(t, agent.StatusSuccess, rec.Status)
	outline := out.Data["content_outline"].(map[string]any)
	require.Equal(t, "Start today and achieve your goals with confidence.", outline["call_to_action"])
	require.Equal(t, []string{}, outline["benefits_section"])
}

func TestTransformersReadValidatedInputFromContext(t *testing.T) {
	view := agent.NewStaticView(map[string]map[string]any{
		InputValidatorName: {"validated_input": map[string]any{
			"product_description": "Tool",
			"goal":                "Grow",
		}},
	})

	payload, err := PrepareValuePropInput(map[string]any{"audience_insights": map[string]any{"tone": "calm"}}, view)
	require.NoError(t, err)
	require.Equal(t, "Tool", payload["product_description"])
	require.Equal(t, map[string]any{"tone": "calm"}, payload["audience_insights"])

	payload, err = PrepareContentOutlineInput(map[string]any{"core_message": "m", "key_benefits": []string{"b"}}, view)
	require.NoError(t, err)
	require.Equal(t, "Grow", payload["goal"])

	payload, err = PassValidatedInput(map[string]any{}, view)
	require.NoError(t, err)
	require.Empty(t, payload)
}

func TestLLMBackedAgentsUseTool(t *testing.T) {
	client := llm.NewMockClient(
		map[string]any{"pain_points": []any{"churn"}, "motivations": []any{"retention"}, "tone": "warm"},
		map[string]any{"core_message": "Keep every customer.", "key_benefits": []any{"Less churn", "More revenue"}},
	)
	agents, err := NewAgents(Options{LLM: client, CountTokens: tokenutil.EstimateFast})
	require.NoError(t, err)

	result, err := newRunner(t, Deps{Agents: agents}).Run(context.Background(), SampleInput())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)

	outline := result.FinalOutput.Data["content_outline"].(map[string]any)
	require.Equal(t, "Keep every customer.", outline["headline"])
	require.Equal(t, []string{"Less churn", "More revenue"}, outline["benefits_section"])

	require.NotNil(t, result.History[1].TokensUsed)
	require.Positive(t, *result.History[1].TokensUsed)
	prompts := client.Prompts()
	require.Len(t, prompts, 2)
	require.True(t, strings.Contains(prompts[0], "SaaS founders"))
}

func TestLLMFailureIsContainedInRecord(t *testing.T) {
	client := llm.NewMockClient()
	client.Err = &conduiterrors.ProviderError{Provider: "mock", StatusCode: 503, Err: errors.New("unavailable")}
	agents, err := NewAgents(Options{LLM: client, CountTokens: tokenutil.EstimateFast})
	require.NoError(t, err)

	result, err := newRunner(t, Deps{Agents: agents}).Run(context.Background(), SampleInput())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusError, result.Status)
	require.Len(t, result.History, 2)
	require.True(t, strings.HasPrefix(result.History[1].Error, "ProviderError: mock: status 503"))
}
