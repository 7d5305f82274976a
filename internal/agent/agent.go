package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"

	"github.com/google/uuid"
)

// Agent is one processing unit of a workflow. Run never fails: every
// outcome is reported through the returned Output and RunRecord.
type Agent interface {
	Name() string
	Description() string
	Run(ctx context.Context, in Input, view ContextView) (Output, RunRecord)
}

// Executor is the agent-specific body wrapped by Base. The result is
// converted to an Output by Coerce.
type Executor interface {
	Execute(ctx context.Context, in Input, view ContextView) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, in Input, view ContextView) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, in Input, view ContextView) (any, error) {
	return f(ctx, in, view)
}

// Preparer is an optional Executor extension called before Execute.
type Preparer interface {
	Prepare(ctx context.Context, in Input, view ContextView) error
}

// Finalizer is an optional Executor extension called with the validated
// output after Execute.
type Finalizer interface {
	Finalize(ctx context.Context, in Input, out Output, view ContextView) error
}

// Info declares an agent's identity and contract.
type Info struct {
	Name         string
	Description  string
	Input        Schema
	Output       OutputSchema
	AllowedTools []string
}

// Validate reports missing required fields.
func (i Info) Validate() error {
	if i.Name == "" {
		return conduiterrors.NewConfigurationError("agent name is required")
	}
	return nil
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger receiving hook failures.
func WithLogger(logger logging.Logger) Option {
	return func(b *Base) {
		b.logger = logging.OrNop(logger)
		b.hooks.logger = b.logger
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(newID func() string) Option {
	return func(b *Base) {
		if newID != nil {
			b.newID = newID
		}
	}
}

// WithHook registers an internal hook at construction.
func WithHook(phase Phase, fn HookFunc) Option {
	return func(b *Base) {
		if err := b.hooks.add(phase, fn); err != nil {
			b.logger.Warn("ignoring hook for %s: %v", b.info.Name, err)
		}
	}
}

// WithTool registers a tool at construction.
func WithTool(tool Tool) Option {
	return func(b *Base) {
		b.RegisterTool(tool)
	}
}

// Base implements the agent execution contract around an Executor:
// validate, before hooks, prepare, execute, coerce, validate output,
// finalize, after or on_error hooks.
type Base struct {
	info     Info
	executor Executor
	hooks    *hookSet
	tools    *toolRegistry
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
}

var _ Agent = (*Base)(nil)

// New builds an agent from info and executor.
func New(info Info, executor Executor, opts ...Option) (*Base, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		return nil, conduiterrors.NewConfigurationError("agent %q has no executor", info.Name)
	}
	if info.Input == nil {
		info.Input = AnyInput()
	}
	logger := logging.NewComponentLogger("agent")
	b := &Base{
		info:     info,
		executor: executor,
		hooks:    newHookSet(logger),
		tools:    newToolRegistry(info.AllowedTools),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// MustNew is New that panics on invalid wiring.
func MustNew(info Info, executor Executor, opts ...Option) *Base {
	b, err := New(info, executor, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Base) Name() string        { return b.info.Name }
func (b *Base) Description() string { return b.info.Description }

// AddHook registers fn for phase. Unknown phases are rejected.
func (b *Base) AddHook(phase Phase, fn HookFunc) error {
	return b.hooks.add(phase, fn)
}

// RegisterTool makes tool available by name. Lookups still require the name
// to be in Info.AllowedTools.
func (b *Base) RegisterTool(tool Tool) {
	if tool == nil {
		return
	}
	b.tools.register(tool)
}

// Tool returns a tool that is both allowed and registered.
func (b *Base) Tool(name string) (Tool, error) {
	return b.tools.lookup(b.info.Name, name)
}

// AllowedTools lists the allowed tool names in sorted order.
func (b *Base) AllowedTools() []string {
	return b.tools.allowedNames()
}

// Run executes the contract. It never panics and never returns an error;
// failures are reported in the record.
func (b *Base) Run(ctx context.Context, in Input, view ContextView) (Output, RunRecord) {
	in = NewInput(in.Payload, in.Metadata)
	if view == nil {
		view = EmptyView()
	}
	rec := RunRecord{
		RunID:     b.newID(),
		AgentName: b.info.Name,
		StartedAt: b.now(),
		Status:    StatusRunning,
		Input:     in.ToMap(),
		Extra:     map[string]any{},
	}

	if err := b.validateInput(in); err != nil {
		var stack string
		var execErr *conduiterrors.ExecutionError
		if errors.As(err, &execErr) {
			stack = execErr.Stack
		}
		rec.Error = formatError(conduiterrors.KindInputValidation, err, stack)
		rec.finish(StatusError, b.now())
		b.hooks.fire(PhaseOnError, b, rec)
		return validationFailureOutput(), rec
	}

	b.hooks.fire(PhaseBefore, b, rec)

	out, err := b.invoke(ctx, in, view)
	if err != nil {
		kind := conduiterrors.KindOf(err)
		var stack string
		var execErr *conduiterrors.ExecutionError
		if errors.As(err, &execErr) {
			stack = execErr.Stack
		}
		if stack == "" {
			stack = string(debug.Stack())
		}
		rec.Error = formatError(kind, err, stack)
		rec.finish(StatusError, b.now())
		b.hooks.fire(PhaseOnError, b, rec)
		return executionFailureOutput(kind, err.Error()), rec
	}

	rec.Output = CloneMap(out.Data)
	if tokens, ok := tokensUsed(out.Metadata); ok {
		rec.TokensUsed = &tokens
	}
	rec.finish(StatusSuccess, b.now())
	b.hooks.fire(PhaseAfter, b, rec)
	return out, rec
}

// validateInput runs the input schema. A panicking schema counts as a
// validation failure.
func (b *Base) validateInput(in Input) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &conduiterrors.ExecutionError{
				Class: conduiterrors.KindInputValidation,
				Err:   fmt.Errorf("schema panicked: %v", r),
				Stack: string(debug.Stack()),
			}
		}
	}()
	return b.info.Input.Validate(in)
}

func (b *Base) invoke(ctx context.Context, in Input, view ContextView) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{}
			err = panicError(r)
		}
	}()

	ctx = withToolbox(ctx, b)

	if preparer, ok := b.executor.(Preparer); ok {
		if err := preparer.Prepare(ctx, in, view); err != nil {
			return Output{}, err
		}
	}

	result, err := b.executor.Execute(ctx, in, view)
	if err != nil {
		return Output{}, err
	}

	out, err = Coerce(result)
	if err != nil {
		return Output{}, err
	}

	if b.info.Output != nil {
		if err := b.info.Output.ValidateOutput(out); err != nil {
			return Output{}, conduiterrors.NewExecutionError(conduiterrors.KindOutputCoercion, err)
		}
	}

	if finalizer, ok := b.executor.(Finalizer); ok {
		if err := finalizer.Finalize(ctx, in, out, view); err != nil {
			return Output{}, err
		}
	}
	return out, nil
}

func panicError(r any) error {
	stack := string(debug.Stack())
	if err, ok := r.(error); ok {
		kind := conduiterrors.KindOf(err)
		if kind == conduiterrors.KindExecution {
			kind = conduiterrors.KindPanic
		}
		return &conduiterrors.ExecutionError{Class: kind, Err: err, Stack: stack}
	}
	return &conduiterrors.ExecutionError{
		Class: conduiterrors.KindPanic,
		Err:   fmt.Errorf("%v", r),
		Stack: stack,
	}
}

func formatError(kind string, err error, stack string) string {
	msg := fmt.Sprintf("%s: %s", kind, err.Error())
	if stack != "" {
		msg += "\n" + stack
	}
	return msg
}

func tokensUsed(metadata map[string]any) (int, bool) {
	switch v := metadata["tokens_used"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
