// Package guardrail enforces run policies as a workflow observer. Violations
// abort the run through errors.GuardrailViolation.
package guardrail

import (
	"context"
	"slices"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/workflow"
)

// Rule names reported on violations.
const (
	RuleRequiredInputKey = "required_input_key"
	RuleMaxSteps         = "max_steps"
	RuleBlockedAgent     = "blocked_agent"
)

// Config declares the policy. MaxSteps of zero means unlimited.
type Config struct {
	MaxSteps          int      `mapstructure:"max_steps" yaml:"max_steps"`
	RequiredInputKeys []string `mapstructure:"required_input_keys" yaml:"required_input_keys"`
	BlockedAgents     []string `mapstructure:"blocked_agents" yaml:"blocked_agents"`
}

// Enabled reports whether any rule is configured.
func (c Config) Enabled() bool {
	return c.MaxSteps > 0 || len(c.RequiredInputKeys) > 0 || len(c.BlockedAgents) > 0
}

// Policy is a per-run observer: its step counter resets on workflow start.
type Policy struct {
	config Config
	steps  int
}

var (
	_ workflow.WorkflowStartHook = (*Policy)(nil)
	_ workflow.BeforeAgentHook   = (*Policy)(nil)
)

// New returns a policy enforcing config.
func New(config Config) *Policy {
	config.RequiredInputKeys = slices.Clone(config.RequiredInputKeys)
	config.BlockedAgents = slices.Clone(config.BlockedAgents)
	return &Policy{config: config}
}

func (p *Policy) Name() string { return "guardrail" }

// Steps returns the number of agents started in the current run.
func (p *Policy) Steps() int { return p.steps }

func (p *Policy) OnWorkflowStart(_ context.Context, initial agent.Input) error {
	p.steps = 0
	for _, key := range p.config.RequiredInputKeys {
		if _, ok := initial.Payload[key]; !ok {
			return conduiterrors.NewGuardrailViolation(RuleRequiredInputKey, "Missing required input key: '%s'", key)
		}
	}
	return nil
}

func (p *Policy) BeforeAgent(_ context.Context, a agent.Agent, _ agent.Input) error {
	p.steps++
	if p.config.MaxSteps > 0 && p.steps > p.config.MaxSteps {
		return conduiterrors.NewGuardrailViolation(RuleMaxSteps, "Workflow exceeded max steps (%d)", p.config.MaxSteps)
	}
	if slices.Contains(p.config.BlockedAgents, a.Name()) {
		return conduiterrors.NewGuardrailViolation(RuleBlockedAgent, "Agent '%s' is blocked by guardrails", a.Name())
	}
	return nil
}
