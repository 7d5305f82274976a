package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
)

// Hook is a workflow-level observer. It implements any subset of the event
// interfaces below; events it does not implement are skipped.
type Hook interface {
	Name() string
}

type WorkflowStartHook interface {
	OnWorkflowStart(ctx context.Context, initial agent.Input) error
}

type WorkflowEndHook interface {
	OnWorkflowEnd(ctx context.Context, result *Result, history []agent.RunRecord) error
}

type BeforeAgentHook interface {
	BeforeAgent(ctx context.Context, a agent.Agent, in agent.Input) error
}

type AfterAgentHook interface {
	AfterAgent(ctx context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error
}

type AgentErrorHook interface {
	OnAgentError(ctx context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error
}

// Hooks broadcasts lifecycle events to observers in registration order.
// Observer errors and panics are logged and swallowed, except a
// GuardrailViolation, which is returned to the caller.
type Hooks struct {
	hooks  []Hook
	logger logging.Logger
}

// NewHooks returns a broadcaster for hooks.
func NewHooks(logger logging.Logger, hooks ...Hook) *Hooks {
	h := &Hooks{logger: logging.OrNop(logger)}
	for _, hook := range hooks {
		h.Register(hook)
	}
	return h
}

// Register appends hook. Nil hooks are ignored.
func (h *Hooks) Register(hook Hook) {
	if hook == nil {
		return
	}
	h.hooks = append(h.hooks, hook)
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	if h == nil {
		return 0
	}
	return len(h.hooks)
}

func (h *Hooks) WorkflowStart(ctx context.Context, initial agent.Input) error {
	return h.each("workflow_start", func(hook Hook) error {
		if target, ok := hook.(WorkflowStartHook); ok {
			return target.OnWorkflowStart(ctx, initial)
		}
		return nil
	})
}

func (h *Hooks) WorkflowEnd(ctx context.Context, result *Result, history []agent.RunRecord) error {
	return h.each("workflow_end", func(hook Hook) error {
		if target, ok := hook.(WorkflowEndHook); ok {
			return target.OnWorkflowEnd(ctx, result, slices.Clone(history))
		}
		return nil
	})
}

func (h *Hooks) BeforeAgent(ctx context.Context, a agent.Agent, in agent.Input) error {
	return h.each("before_agent", func(hook Hook) error {
		if target, ok := hook.(BeforeAgentHook); ok {
			return target.BeforeAgent(ctx, a, in)
		}
		return nil
	})
}

func (h *Hooks) AfterAgent(ctx context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error {
	return h.each("after_agent", func(hook Hook) error {
		if target, ok := hook.(AfterAgentHook); ok {
			return target.AfterAgent(ctx, a, out, rec)
		}
		return nil
	})
}

func (h *Hooks) AgentError(ctx context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error {
	return h.each("agent_error", func(hook Hook) error {
		if target, ok := hook.(AgentErrorHook); ok {
			return target.OnAgentError(ctx, a, errMsg, rec)
		}
		return nil
	})
}

func (h *Hooks) each(event string, call func(Hook) error) error {
	if h == nil {
		return nil
	}
	for _, hook := range h.hooks {
		if err := h.dispatch(event, hook, call); err != nil {
			return err
		}
	}
	return nil
}

// dispatch returns only guardrail violations.
func (h *Hooks) dispatch(event string, hook Hook, call func(Hook) error) (violation error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if err, ok := r.(error); ok && conduiterrors.IsGuardrailViolation(err) {
			violation = err
			return
		}
		h.logger.Error("hook %s panicked on %s: %v\n%s", hook.Name(), event, r, debug.Stack())
	}()

	err := call(hook)
	if err == nil {
		return nil
	}
	var guardrail *conduiterrors.GuardrailViolation
	if errors.As(err, &guardrail) {
		return err
	}
	h.logger.Warn("hook %s failed on %s: %v", hook.Name(), event, err)
	return nil
}

// HookFunc adapts plain functions into a Hook, mostly for tests and small
// one-off observers. Nil fields are skipped.
type HookFunc struct {
	ID              string
	WorkflowStartFn func(ctx context.Context, initial agent.Input) error
	WorkflowEndFn   func(ctx context.Context, result *Result, history []agent.RunRecord) error
	BeforeAgentFn   func(ctx context.Context, a agent.Agent, in agent.Input) error
	AfterAgentFn    func(ctx context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error
	AgentErrorFn    func(ctx context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error
}

func (f *HookFunc) Name() string {
	if f.ID == "" {
		return fmt.Sprintf("hookfunc@%p", f)
	}
	return f.ID
}

func (f *HookFunc) OnWorkflowStart(ctx context.Context, initial agent.Input) error {
	if f.WorkflowStartFn == nil {
		return nil
	}
	return f.WorkflowStartFn(ctx, initial)
}

func (f *HookFunc) OnWorkflowEnd(ctx context.Context, result *Result, history []agent.RunRecord) error {
	if f.WorkflowEndFn == nil {
		return nil
	}
	return f.WorkflowEndFn(ctx, result, history)
}

func (f *HookFunc) BeforeAgent(ctx context.Context, a agent.Agent, in agent.Input) error {
	if f.BeforeAgentFn == nil {
		return nil
	}
	return f.BeforeAgentFn(ctx, a, in)
}

func (f *HookFunc) AfterAgent(ctx context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error {
	if f.AfterAgentFn == nil {
		return nil
	}
	return f.AfterAgentFn(ctx, a, out, rec)
}

func (f *HookFunc) OnAgentError(ctx context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error {
	if f.AgentErrorFn == nil {
		return nil
	}
	return f.AgentErrorFn(ctx, a, errMsg, rec)
}
