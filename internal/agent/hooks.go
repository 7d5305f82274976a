package agent

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"conduit/internal/logging"
)

// Phase names an agent-internal hook point.
type Phase string

const (
	PhaseBefore  Phase = "before"
	PhaseAfter   Phase = "after"
	PhaseOnError Phase = "on_error"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseBefore, PhaseAfter, PhaseOnError:
		return true
	}
	return false
}

// HookFunc observes a single agent's lifecycle. Errors and panics are logged
// and never change the agent's outcome.
type HookFunc func(a Agent, rec RunRecord) error

type hookSet struct {
	mu      sync.RWMutex
	byPhase map[Phase][]HookFunc
	logger  logging.Logger
}

func newHookSet(logger logging.Logger) *hookSet {
	return &hookSet{byPhase: map[Phase][]HookFunc{}, logger: logging.OrNop(logger)}
}

func (h *hookSet) add(phase Phase, fn HookFunc) error {
	if !phase.Valid() {
		return fmt.Errorf("unknown hook phase %q", phase)
	}
	if fn == nil {
		return fmt.Errorf("nil hook for phase %q", phase)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byPhase[phase] = append(h.byPhase[phase], fn)
	return nil
}

func (h *hookSet) fire(phase Phase, a Agent, rec RunRecord) {
	h.mu.RLock()
	fns := slices.Clone(h.byPhase[phase])
	h.mu.RUnlock()

	for i, fn := range fns {
		h.call(phase, i, fn, a, rec)
	}
}

func (h *hookSet) call(phase Phase, index int, fn HookFunc, a Agent, rec RunRecord) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("%s hook #%d for %s panicked: %v\n%s", phase, index, a.Name(), r, debug.Stack())
		}
	}()
	if err := fn(a, rec); err != nil {
		h.logger.Warn("%s hook #%d for %s failed: %v", phase, index, a.Name(), err)
	}
}
