package hooks

import (
	"context"

	"conduit/internal/agent"
	"conduit/internal/memory"
	"conduit/internal/workflow"
)

// MemoryHook persists the history of every finished run, successful or not.
type MemoryHook struct {
	store memory.Store
}

// NewMemoryHook returns a hook saving into store.
func NewMemoryHook(store memory.Store) *MemoryHook {
	return &MemoryHook{store: store}
}

func (h *MemoryHook) Name() string { return "memory" }

func (h *MemoryHook) OnWorkflowEnd(ctx context.Context, _ *workflow.Result, history []agent.RunRecord) error {
	if len(history) == 0 || h.store == nil {
		return nil
	}
	return h.store.SaveRun(ctx, history)
}
