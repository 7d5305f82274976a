// Package marketing implements the marketing content workflow: input
// validation, audience analysis, value proposition and content outline.
package marketing

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/llm"
)

// Agent names.
const (
	InputValidatorName   = "marketing.input_validator"
	AudienceAnalyzerName = "marketing.audience_analyzer"
	ValuePropositionName = "marketing.value_proposition"
	ContentOutlineName   = "marketing.content_outline_generator"
)

// RequiredFields must be present and non-empty in the initial payload.
var RequiredFields = []string{"product_description", "target_audience", "goal"}

// Agents is the set of agents the workflow runs, in order.
type Agents struct {
	InputValidator   agent.Agent
	AudienceAnalyzer agent.Agent
	ValueProposition agent.Agent
	ContentOutline   agent.Agent
}

// Options configures NewAgents.
type Options struct {
	// LLM backs the audience analyzer and value proposition agents. Nil
	// keeps every agent rule based.
	LLM llm.Client
	// CountTokens estimates token usage; nil uses tokenutil.CountTokens.
	CountTokens func(string) int
	// AgentOptions apply to every agent.
	AgentOptions []agent.Option
}

// NewAgents builds the four marketing agents.
func NewAgents(opts Options) (Agents, error) {
	var llmOpts []agent.Option
	var allowed []string
	if opts.LLM != nil {
		allowed = []string{llm.ToolName}
		llmOpts = []agent.Option{agent.WithTool(llm.NewTool(opts.LLM, opts.CountTokens))}
	}
	withLLM := append(append([]agent.Option(nil), opts.AgentOptions...), llmOpts...)

	validator, err := agent.New(agent.Info{
		Name:        InputValidatorName,
		Description: "Validates initial marketing input",
		Output:      agent.OutputKeys("validated_input"),
	}, inputValidator{}, opts.AgentOptions...)
	if err != nil {
		return Agents{}, err
	}
	analyzer, err := agent.New(agent.Info{
		Name:         AudienceAnalyzerName,
		Description:  "Analyzes target audience and extracts insights",
		Input:        agent.StructSchema[audienceRequest](),
		Output:       agent.OutputKeys("audience_insights"),
		AllowedTools: allowed,
	}, audienceAnalyzer{useLLM: opts.LLM != nil}, withLLM...)
	if err != nil {
		return Agents{}, err
	}
	valueProp, err := agent.New(agent.Info{
		Name:         ValuePropositionName,
		Description:  "Generates core message and key benefits",
		Input:        agent.StructSchema[valuePropRequest](),
		Output:       agent.OutputKeys("core_message", "key_benefits", "goal"),
		AllowedTools: allowed,
	}, valueProposition{useLLM: opts.LLM != nil}, withLLM...)
	if err != nil {
		return Agents{}, err
	}
	outline, err := agent.New(agent.Info{
		Name:        ContentOutlineName,
		Description: "Generates structured marketing content outline",
		Input:       agent.StructSchema[outlineRequest](),
		Output:      agent.OutputKeys("content_outline"),
	}, contentOutline{}, opts.AgentOptions...)
	if err != nil {
		return Agents{}, err
	}

	return Agents{
		InputValidator:   validator,
		AudienceAnalyzer: analyzer,
		ValueProposition: valueProp,
		ContentOutline:   outline,
	}, nil
}

// inputValidator checks the required fields in order and fails on the first
// one that is missing or empty.
type inputValidator struct{}

func (inputValidator) Execute(_ context.Context, in agent.Input, _ agent.ContextView) (any, error) {
	clean := make(map[string]any, len(RequiredFields))
	for _, key := range RequiredFields {
		value, ok := in.Payload[key]
		if !ok || isEmpty(value) {
			return nil, &conduiterrors.InputValidationError{
				Err: fmt.Errorf("Missing required input field: '%s'", key),
			}
		}
		clean[key] = strings.TrimSpace(fmt.Sprint(value))
	}
	return agent.NewOutput(map[string]any{"validated_input": clean}).
		WithConfidence(1.0).
		WithMetadata("validated_by", InputValidatorName), nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case int:
		return v == 0
	case float64:
		return v == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

type audienceRequest struct {
	ProductDescription string `mapstructure:"product_description"`
	TargetAudience     string `mapstructure:"target_audience"`
	Goal               string `mapstructure:"goal"`
}

type audienceInsights struct {
	PainPoints  []string `mapstructure:"pain_points"`
	Motivations []string `mapstructure:"motivations"`
	Tone        string   `mapstructure:"tone"`
}

func (a audienceInsights) toMap() map[string]any {
	return map[string]any{
		"pain_points": nonNil(a.PainPoints),
		"motivations": nonNil(a.Motivations),
		"tone":        a.Tone,
	}
}

type audienceAnalyzer struct {
	useLLM bool
}

func (a audienceAnalyzer) Execute(ctx context.Context, in agent.Input, _ agent.ContextView) (any, error) {
	req, err := agent.DecodePayload[audienceRequest](in.Payload)
	if err != nil {
		return nil, err
	}

	insights := analyzeAudience(req.TargetAudience)
	out := agent.NewOutput(nil).WithConfidence(0.85).WithMetadata("analyzed_by", AudienceAnalyzerName)
	if a.useLLM {
		generated, tokens, err := generate[audienceInsights](ctx, audiencePrompt(req))
		if err != nil {
			return nil, err
		}
		if len(generated.PainPoints) > 0 {
			insights = generated
			if insights.Tone == "" {
				insights.Tone = "professional"
			}
		}
		out = out.WithMetadata("tokens_used", tokens)
	}
	out.Data = map[string]any{"audience_insights": insights.toMap()}
	return out, nil
}

// analyzeAudience applies the keyword rules. Later matches set the tone.
func analyzeAudience(targetAudience string) audienceInsights {
	audience := strings.ToLower(targetAudience)
	insights := audienceInsights{Tone: "professional"}
	if strings.Contains(audience, "founder") {
		insights.PainPoints = append(insights.PainPoints, "limited time")
		insights.Motivations = append(insights.Motivations, "growth and scalability")
		insights.Tone = "confident"
	}
	if strings.Contains(audience, "student") {
		insights.PainPoints = append(insights.PainPoints, "budget constraints")
		insights.Motivations = append(insights.Motivations, "career growth")
		insights.Tone = "encouraging"
	}
	if len(insights.PainPoints) == 0 {
		insights.PainPoints = []string{"general inefficiency"}
		insights.Motivations = []string{"improved outcomes"}
	}
	return insights
}

func audiencePrompt(req audienceRequest) string {
	return fmt.Sprintf(`Analyze the target audience of a marketing campaign.
Product: %s
Target audience: %s
Goal: %s

Return an object with "pain_points" (list of strings), "motivations" (list of strings) and "tone" (one word).`,
		req.ProductDescription, req.TargetAudience, req.Goal)
}

type valuePropRequest struct {
	ProductDescription string           `mapstructure:"product_description" validate:"required"`
	Goal               string           `mapstructure:"goal" validate:"required"`
	AudienceInsights   audienceInsights `mapstructure:"audience_insights"`
}

type valuePropResponse struct {
	CoreMessage string   `mapstructure:"core_message"`
	KeyBenefits []string `mapstructure:"key_benefits"`
}

type valueProposition struct {
	useLLM bool
}

func (v valueProposition) Execute(ctx context.Context, in agent.Input, _ agent.ContextView) (any, error) {
	req, err := agent.DecodePayload[valuePropRequest](in.Payload)
	if err != nil {
		return nil, err
	}

	coreMessage := fmt.Sprintf("%s helps you %s efficiently.", req.ProductDescription, strings.ToLower(req.Goal))
	benefits := []string{"Increase efficiency", "Drive growth"}
	if pains := req.AudienceInsights.PainPoints; len(pains) > 0 {
		benefits[0] = "Solve " + pains[0]
	}
	if motivations := req.AudienceInsights.Motivations; len(motivations) > 0 {
		benefits[1] = "Enable " + motivations[0]
	}

	out := agent.NewOutput(nil).WithConfidence(0.9).WithMetadata("generated_by", ValuePropositionName)
	if v.useLLM {
		generated, tokens, err := generate[valuePropResponse](ctx, valuePropPrompt(req))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(generated.CoreMessage) != "" {
			coreMessage = generated.CoreMessage
		}
		if len(generated.KeyBenefits) > 0 {
			benefits = generated.KeyBenefits
		}
		out = out.WithMetadata("tokens_used", tokens)
	}
	out.Data = map[string]any{
		"core_message": coreMessage,
		"key_benefits": benefits,
		"goal":         req.Goal,
	}
	return out, nil
}

func valuePropPrompt(req valuePropRequest) string {
	return fmt.Sprintf(`Write a value proposition.
Product: %s
Goal: %s
Audience pain points: %s
Audience motivations: %s
Tone: %s

Return an object with "core_message" (one sentence) and "key_benefits" (list of short strings).`,
		req.ProductDescription, req.Goal,
		strings.Join(req.AudienceInsights.PainPoints, ", "),
		strings.Join(req.AudienceInsights.Motivations, ", "),
		req.AudienceInsights.Tone)
}

type outlineRequest struct {
	CoreMessage string   `mapstructure:"core_message" validate:"required"`
	KeyBenefits []string `mapstructure:"key_benefits"`
	Goal        string   `mapstructure:"goal"`
}

type contentOutline struct{}

func (contentOutline) Execute(_ context.Context, in agent.Input, _ agent.ContextView) (any, error) {
	req, err := agent.DecodePayload[outlineRequest](in.Payload)
	if err != nil {
		return nil, err
	}
	goal := strings.ToLower(req.Goal)
	if goal == "" {
		goal = "achieve your goals"
	}
	outline := map[string]any{
		"headline":         req.CoreMessage,
		"introduction":     fmt.Sprintf("Are you struggling to %s?", goal),
		"benefits_section": nonNil(req.KeyBenefits),
		"call_to_action":   fmt.Sprintf("Start today and %s with confidence.", goal),
	}
	return agent.NewOutput(map[string]any{"content_outline": outline}).
		WithConfidence(0.85).
		WithMetadata("generated_by", ContentOutlineName), nil
}

// generate asks the llm tool for a structured answer and decodes it as T.
func generate[T any](ctx context.Context, prompt string) (T, int, error) {
	var zero T
	tool, err := agent.ToolboxFromContext(ctx).Tool(llm.ToolName)
	if err != nil {
		return zero, 0, err
	}
	result, err := tool.Invoke(ctx, map[string]any{"prompt": prompt})
	if err != nil {
		return zero, 0, err
	}
	response, _ := result["response"].(map[string]any)
	tokens, _ := result["tokens_used"].(int)
	decoded, err := agent.DecodePayload[T](response)
	if err != nil {
		return zero, tokens, &conduiterrors.ParseError{Raw: fmt.Sprint(response), Err: err}
	}
	return decoded, tokens, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
