// Package hooks contains the bundled workflow observers.
package hooks

import (
	"context"

	"conduit/internal/agent"
	"conduit/internal/jsonx"
	"conduit/internal/logging"
	"conduit/internal/workflow"
)

// LoggingHook writes every lifecycle event to a logger.
type LoggingHook struct {
	logger logging.Logger
}

// NewLoggingHook returns a hook logging through logger, or the "workflow"
// component logger when nil.
func NewLoggingHook(logger logging.Logger) *LoggingHook {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("workflow")
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) Name() string { return "logging" }

func (h *LoggingHook) OnWorkflowStart(_ context.Context, initial agent.Input) error {
	h.logger.Info("workflow started: %s", compact(initial.ToMap()))
	return nil
}

func (h *LoggingHook) OnWorkflowEnd(_ context.Context, result *workflow.Result, history []agent.RunRecord) error {
	h.logger.Info("workflow finished: status=%s steps=%d", result.Status, len(history))
	return nil
}

func (h *LoggingHook) BeforeAgent(_ context.Context, a agent.Agent, in agent.Input) error {
	h.logger.Info("agent %s starting: %s", a.Name(), compact(in.Payload))
	return nil
}

func (h *LoggingHook) AfterAgent(_ context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error {
	h.logger.Info("agent %s finished in %s (confidence %.2f): %s", a.Name(), rec.Duration(), out.Confidence, compact(out.Data))
	return nil
}

func (h *LoggingHook) OnAgentError(_ context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error {
	h.logger.Error("agent %s failed after %s: %s", a.Name(), rec.Duration(), firstLine(errMsg))
	return nil
}

func compact(v any) string {
	data, err := jsonx.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
