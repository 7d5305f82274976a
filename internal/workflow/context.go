package workflow

import (
	"slices"

	"conduit/internal/agent"
)

// Context is the run-scoped mapping from agent name to that agent's last
// successful output. Only the Orchestrator writes to it; agents and
// transformers receive it as a read-only agent.ContextView.
type Context struct {
	entries map[string]map[string]any
	order   []string
}

var _ agent.ContextView = (*Context)(nil)

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{entries: map[string]map[string]any{}}
}

// SeedContext returns a context pre-populated with entries, in the given
// name order.
func SeedContext(names []string, entries map[string]map[string]any) *Context {
	c := NewContext()
	for _, name := range names {
		if output, ok := entries[name]; ok {
			c.set(name, output)
		}
	}
	return c
}

func (c *Context) set(name string, output map[string]any) {
	if _, exists := c.entries[name]; !exists {
		c.order = append(c.order, name)
	}
	c.entries[name] = agent.CloneMap(output)
}

func (c *Context) Lookup(agentName string) (map[string]any, bool) {
	output, ok := c.entries[agentName]
	if !ok {
		return nil, false
	}
	return agent.CloneMap(output), true
}

// Names lists agents in the order their outputs were first recorded.
func (c *Context) Names() []string {
	return slices.Clone(c.order)
}

func (c *Context) Snapshot() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.entries))
	for name, output := range c.entries {
		out[name] = agent.CloneMap(output)
	}
	return out
}

// Len returns the number of recorded outputs.
func (c *Context) Len() int {
	return len(c.entries)
}
