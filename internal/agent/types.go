package agent

import (
	"fmt"
	"math"
	"time"

	conduiterrors "conduit/internal/errors"
)

// Status is the lifecycle state of a RunRecord.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Input is what an agent receives for one invocation.
type Input struct {
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata"`
}

// NewInput copies payload and metadata so later mutation by the caller does
// not leak into the invocation. Nil maps become empty maps.
func NewInput(payload, metadata map[string]any) Input {
	return Input{Payload: CloneMap(payload), Metadata: CloneMap(metadata)}
}

// DecodeInput converts a raw {payload, metadata} mapping, as received from
// JSON, into an Input.
func DecodeInput(raw map[string]any) (Input, error) {
	payload, err := mappingField(raw, "payload")
	if err != nil {
		return Input{}, err
	}
	metadata, err := mappingField(raw, "metadata")
	if err != nil {
		return Input{}, err
	}
	return NewInput(payload, metadata), nil
}

func mappingField(raw map[string]any, key string) (map[string]any, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, conduiterrors.NewInputValidationError(key, "must be an object")
	}
	return m, nil
}

// ToMap renders the input the way it is stored on a RunRecord.
func (in Input) ToMap() map[string]any {
	return map[string]any{
		"payload":  CloneMap(in.Payload),
		"metadata": CloneMap(in.Metadata),
	}
}

// Output is what an agent produces.
type Output struct {
	Data       map[string]any `json:"output"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

// NewOutput returns an output with full confidence and empty metadata.
func NewOutput(data map[string]any) Output {
	if data == nil {
		data = map[string]any{}
	}
	return Output{Data: data, Confidence: 1.0, Metadata: map[string]any{}}
}

// WithConfidence returns a copy of o with confidence set.
func (o Output) WithConfidence(confidence float64) Output {
	o.Confidence = confidence
	return o
}

// WithMetadata returns a copy of o with key set in its metadata.
func (o Output) WithMetadata(key string, value any) Output {
	md := CloneMap(o.Metadata)
	md[key] = value
	o.Metadata = md
	return o
}

// Validate checks the output invariants.
func (o Output) Validate() error {
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		return conduiterrors.NewExecutionError(conduiterrors.KindOutputCoercion,
			fmt.Errorf("confidence %v outside [0, 1]", o.Confidence))
	}
	return nil
}

func validationFailureOutput() Output {
	return Output{
		Data:       map[string]any{},
		Confidence: 0,
		Metadata:   map[string]any{"error": "input_validation"},
	}
}

func executionFailureOutput(kind, message string) Output {
	return Output{
		Data:       map[string]any{"error": message},
		Confidence: 0,
		Metadata:   map[string]any{"exception_type": kind},
	}
}

// RunRecord is the audit entry for one agent invocation.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	AgentName  string         `json:"agent_name"`
	StartedAt  time.Time      `json:"start_ts"`
	EndedAt    *time.Time     `json:"end_ts,omitempty"`
	DurationS  *float64       `json:"duration_s,omitempty"`
	Status     Status         `json:"status"`
	Input      map[string]any `json:"input"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	TokensUsed *int           `json:"tokens_used,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Duration returns end - start, or zero while the record is running.
func (r RunRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// DurationSeconds returns duration_s, or zero while the record is running.
func (r RunRecord) DurationSeconds() float64 {
	if r.DurationS == nil {
		return 0
	}
	return *r.DurationS
}

// Succeeded reports whether the invocation finished successfully.
func (r RunRecord) Succeeded() bool {
	return r.Status == StatusSuccess
}

// finish moves a running record to status. Terminal records are left alone.
func (r *RunRecord) finish(status Status, end time.Time) {
	if r.Status != StatusRunning {
		return
	}
	r.Status = status
	r.EndedAt = &end
	seconds := end.Sub(r.StartedAt).Seconds()
	r.DurationS = &seconds
}
