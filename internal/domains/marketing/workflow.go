package marketing

import (
	"conduit/internal/agent"
	"conduit/internal/workflow"
)

// PassValidatedInput hands the validator's cleaned fields to the audience
// analyzer.
func PassValidatedInput(prev map[string]any, _ agent.ContextView) (map[string]any, error) {
	validated, _ := prev["validated_input"].(map[string]any)
	if validated == nil {
		return map[string]any{}, nil
	}
	return validated, nil
}

// PrepareValuePropInput combines the validated input recorded in the
// context with the analyzer's insights.
func PrepareValuePropInput(prev map[string]any, view agent.ContextView) (map[string]any, error) {
	validated := validatedInput(view)
	return map[string]any{
		"product_description": validated["product_description"],
		"goal":                validated["goal"],
		"audience_insights":   prev["audience_insights"],
	}, nil
}

// PrepareContentOutlineInput feeds the value proposition and the original
// goal to the outline generator.
func PrepareContentOutlineInput(prev map[string]any, view agent.ContextView) (map[string]any, error) {
	validated := validatedInput(view)
	return map[string]any{
		"core_message": prev["core_message"],
		"key_benefits": prev["key_benefits"],
		"goal":         validated["goal"],
	}, nil
}

func validatedInput(view agent.ContextView) map[string]any {
	if view == nil {
		return map[string]any{}
	}
	output, ok := view.Lookup(InputValidatorName)
	if !ok {
		return map[string]any{}
	}
	validated, _ := output["validated_input"].(map[string]any)
	if validated == nil {
		return map[string]any{}
	}
	return validated
}

// NewWorkflow returns the four marketing steps in order.
func NewWorkflow(agents Agents) []workflow.Step {
	return []workflow.Step{
		workflow.NewStep(agents.InputValidator),
		workflow.NewTransformStep(agents.AudienceAnalyzer, PassValidatedInput),
		workflow.NewTransformStep(agents.ValueProposition, PrepareValuePropInput),
		workflow.NewTransformStep(agents.ContentOutline, PrepareContentOutlineInput),
	}
}

// SampleInput is the demonstration request used by the CLI.
func SampleInput() agent.Input {
	return agent.NewInput(map[string]any{
		"product_description": "AI CRM tool",
		"target_audience":     "SaaS founders",
		"goal":                "Increase signups",
	}, map[string]any{"trace": "cli-run"})
}
