package server

import (
	"context"
	"sync"
	"time"

	"conduit/internal/agent"
	"conduit/internal/logging"
	"conduit/internal/observability"
	"conduit/internal/workflow"
)

// Event types published to subscribers.
const (
	EventWorkflowStarted  = "workflow_started"
	EventWorkflowFinished = "workflow_finished"
	EventAgentStarted     = "agent_started"
	EventAgentFinished    = "agent_finished"
	EventAgentFailed      = "agent_failed"
)

// Event is one workflow lifecycle notification.
type Event struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Status    string         `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const subscriberBuffer = 64

// EventHub is a workflow observer that fans events out to subscribers. A
// subscriber that falls behind loses events rather than stalling the run.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger logging.Logger
	now    func() time.Time
}

var (
	_ workflow.WorkflowStartHook = (*EventHub)(nil)
	_ workflow.WorkflowEndHook   = (*EventHub)(nil)
	_ workflow.BeforeAgentHook   = (*EventHub)(nil)
	_ workflow.AfterAgentHook    = (*EventHub)(nil)
	_ workflow.AgentErrorHook    = (*EventHub)(nil)
)

// NewEventHub returns an empty hub.
func NewEventHub(logger logging.Logger) *EventHub {
	return &EventHub{
		subs:   make(map[int]chan Event),
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// Subscribe registers a subscriber. The returned cancel func unsubscribes
// and closes the channel.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *EventHub) publish(ctx context.Context, ev Event) {
	ev.RunID = observability.RunIDFromContext(ctx)
	ev.Timestamp = h.now()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("event subscriber %d is behind, dropped %s", id, ev.Type)
		}
	}
}

func (h *EventHub) Name() string { return "events" }

func (h *EventHub) OnWorkflowStart(ctx context.Context, initial agent.Input) error {
	h.publish(ctx, Event{Type: EventWorkflowStarted, Data: initial.ToMap()})
	return nil
}

func (h *EventHub) OnWorkflowEnd(ctx context.Context, result *workflow.Result, history []agent.RunRecord) error {
	ev := Event{Type: EventWorkflowFinished, Data: map[string]any{"steps": len(history)}}
	if result != nil {
		ev.Status = string(result.Status)
	}
	h.publish(ctx, ev)
	return nil
}

func (h *EventHub) BeforeAgent(ctx context.Context, a agent.Agent, _ agent.Input) error {
	h.publish(ctx, Event{Type: EventAgentStarted, Agent: a.Name()})
	return nil
}

func (h *EventHub) AfterAgent(ctx context.Context, a agent.Agent, out agent.Output, rec agent.RunRecord) error {
	h.publish(ctx, Event{
		Type:   EventAgentFinished,
		Agent:  a.Name(),
		Status: string(rec.Status),
		Data:   map[string]any{"output": agent.CloneMap(out.Data), "confidence": out.Confidence},
	})
	return nil
}

func (h *EventHub) OnAgentError(ctx context.Context, a agent.Agent, errMsg string, rec agent.RunRecord) error {
	h.publish(ctx, Event{Type: EventAgentFailed, Agent: a.Name(), Status: string(rec.Status), Error: errMsg})
	return nil
}
