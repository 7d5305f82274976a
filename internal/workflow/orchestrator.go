package workflow

import (
	"context"
	"slices"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
)

// Status is the outcome of a completed workflow run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the structured outcome of a run that was not aborted.
type Result struct {
	Status      Status            `json:"status"`
	FinalOutput *agent.Output     `json:"final_output"`
	History     []agent.RunRecord `json:"rec_history"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHooks attaches a workflow-level hook broadcaster.
func WithHooks(hooks *Hooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.OrNop(logger)
	}
}

// Orchestrator runs a fixed sequence of steps, stopping at the first agent
// failure. One Orchestrator serves one run at a time.
type Orchestrator struct {
	steps  []Step
	hooks  *Hooks
	logger logging.Logger
}

// New validates steps and builds an Orchestrator.
func New(steps []Step, opts ...Option) (*Orchestrator, error) {
	if len(steps) == 0 {
		return nil, conduiterrors.NewConfigurationError("workflow needs at least one step")
	}
	for i, step := range steps {
		if step.Agent == nil {
			return nil, conduiterrors.NewConfigurationError("workflow step %d has no agent", i+1)
		}
	}
	o := &Orchestrator{
		steps:  append([]Step(nil), steps...),
		logger: logging.NewComponentLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Steps returns the number of configured steps.
func (o *Orchestrator) Steps() int {
	return len(o.steps)
}

// Run executes every step in order. shared may be nil, in which case a fresh
// Context is used.
//
// A non-nil error means the run was aborted and no Result exists: either an
// observer raised a GuardrailViolation or a transformer failed. Agent
// failures are not errors; they produce a Result with StatusError.
func (o *Orchestrator) Run(ctx context.Context, initial agent.Input, shared *Context) (*Result, error) {
	if shared == nil {
		shared = NewContext()
	}
	initial = agent.NewInput(initial.Payload, initial.Metadata)
	history := make([]agent.RunRecord, 0, len(o.steps))

	if err := o.hooks.WorkflowStart(ctx, initial); err != nil {
		return nil, err
	}

	current := initial
	var last agent.Output
	for i, step := range o.steps {
		a := step.Agent
		o.logger.Debug("running step %d/%d: %s", i+1, len(o.steps), a.Name())

		stepInput := current
		if step.Transform != nil {
			payload, err := step.Transform(current.Payload, shared)
			if err != nil {
				o.logger.Error("transformer for %s failed: %v", a.Name(), err)
				return nil, err
			}
			stepInput = agent.NewInput(payload, current.Metadata)
		}

		if err := o.hooks.BeforeAgent(ctx, a, stepInput); err != nil {
			return nil, err
		}

		out, rec := a.Run(ctx, stepInput, shared)
		history = append(history, rec)
		last = out

		if rec.Status != agent.StatusSuccess {
			if err := o.hooks.AgentError(ctx, a, rec.Error, rec); err != nil {
				return nil, err
			}
			result := &Result{Status: StatusError, FinalOutput: &last, History: slices.Clone(history)}
			if err := o.hooks.WorkflowEnd(ctx, result, history); err != nil {
				return nil, err
			}
			return result, nil
		}

		if err := o.hooks.AfterAgent(ctx, a, out, rec); err != nil {
			return nil, err
		}

		shared.set(a.Name(), out.Data)

		// Only the agent name is carried forward; the caller's metadata
		// does not survive past the first step.
		current = agent.NewInput(out.Data, map[string]any{"previous_agent": a.Name()})
	}

	result := &Result{Status: StatusSuccess, FinalOutput: &last, History: slices.Clone(history)}
	if err := o.hooks.WorkflowEnd(ctx, result, history); err != nil {
		return nil, err
	}
	return result, nil
}
