package workflow

import "conduit/internal/agent"

// Transformer builds a step's payload from the previous step's payload and
// the outputs recorded so far. Errors abort the run.
type Transformer func(prev map[string]any, view agent.ContextView) (map[string]any, error)

// Step pairs an agent with an optional input transformer.
type Step struct {
	Agent     agent.Agent
	Transform Transformer
}

// NewStep returns a step without a transformer: the agent receives the
// previous step's input verbatim.
func NewStep(a agent.Agent) Step {
	return Step{Agent: a}
}

// NewTransformStep returns a step whose payload is produced by transform.
func NewTransformStep(a agent.Agent, transform Transformer) Step {
	return Step{Agent: a, Transform: transform}
}
