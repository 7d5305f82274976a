package agent

import "slices"

// ContextView is a read-only view of the shared run context: the outputs of
// the agents that have succeeded so far, keyed by agent name. Returned maps
// are copies.
type ContextView interface {
	Lookup(agentName string) (map[string]any, bool)
	Names() []string
	Snapshot() map[string]map[string]any
}

// StaticView is a ContextView over a fixed mapping, for running an agent
// outside a workflow.
type StaticView struct {
	entries map[string]map[string]any
	order   []string
}

// NewStaticView copies entries. Names are reported in sorted order.
func NewStaticView(entries map[string]map[string]any) *StaticView {
	view := &StaticView{entries: make(map[string]map[string]any, len(entries))}
	for name, output := range entries {
		view.entries[name] = CloneMap(output)
		view.order = append(view.order, name)
	}
	slices.Sort(view.order)
	return view
}

// EmptyView returns a view with no entries.
func EmptyView() ContextView {
	return NewStaticView(nil)
}

func (v *StaticView) Lookup(agentName string) (map[string]any, bool) {
	output, ok := v.entries[agentName]
	if !ok {
		return nil, false
	}
	return CloneMap(output), true
}

func (v *StaticView) Names() []string {
	return slices.Clone(v.order)
}

func (v *StaticView) Snapshot() map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.entries))
	for name, output := range v.entries {
		out[name] = CloneMap(output)
	}
	return out
}
