package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrToolNotAllowed = errors.New("tool not allowed")
	ErrToolNotFound   = errors.New("tool not registered")
)

// Tool is a capability an agent may call while executing.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Toolbox resolves the tools available to the running agent.
type Toolbox interface {
	Tool(name string) (Tool, error)
}

type toolRegistry struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
	tools   map[string]Tool
}

func newToolRegistry(allowed []string) *toolRegistry {
	reg := &toolRegistry{allowed: map[string]struct{}{}, tools: map[string]Tool{}}
	for _, name := range allowed {
		reg.allowed[name] = struct{}{}
	}
	return reg
}

func (r *toolRegistry) register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *toolRegistry) lookup(agentName, name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.allowed[name]; !ok {
		return nil, fmt.Errorf("%w: %q for agent %q", ErrToolNotAllowed, name, agentName)
	}
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in agent %q", ErrToolNotFound, name, agentName)
	}
	return tool, nil
}

func (r *toolRegistry) allowedNames() []string {
	names := make([]string, 0, len(r.allowed))
	for name := range r.allowed {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type toolboxKey struct{}

func withToolbox(ctx context.Context, box Toolbox) context.Context {
	return context.WithValue(ctx, toolboxKey{}, box)
}

// ToolboxFromContext returns the toolbox of the agent currently executing.
// Outside an agent invocation every lookup fails with ErrToolNotFound.
func ToolboxFromContext(ctx context.Context) Toolbox {
	if box, ok := ctx.Value(toolboxKey{}).(Toolbox); ok {
		return box
	}
	return emptyToolbox{}
}

type emptyToolbox struct{}

func (emptyToolbox) Tool(name string) (Tool, error) {
	return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
}
