package agent

import (
	"fmt"
	"iter"

	conduiterrors "conduit/internal/errors"

	"github.com/go-viper/mapstructure/v2"
)

// Mapper is implemented by results that know how to render themselves as an
// output envelope ({"output", "confidence", "metadata"}).
type Mapper interface {
	ToMap() map[string]any
}

// Pair is one key/value entry of an output envelope.
type Pair struct {
	Key   string
	Value any
}

// coercion turns an Execute result into an Output. ok is false when the
// strategy does not apply to the value.
type coercion struct {
	name  string
	apply func(result any) (out Output, ok bool, err error)
}

// coercions are tried in order; the first applicable strategy decides.
var coercions = []coercion{
	{name: "output", apply: fromOutput},
	{name: "mapping", apply: fromMapping},
	{name: "mapper", apply: fromMapper},
	{name: "pairs", apply: fromPairs},
}

// Coerce converts an Execute result into a validated Output. Failures are
// ExecutionErrors of kind OutputCoercionError.
func Coerce(result any) (Output, error) {
	for _, c := range coercions {
		out, ok, err := c.apply(result)
		if !ok {
			continue
		}
		if err != nil {
			return Output{}, conduiterrors.NewExecutionError(conduiterrors.KindOutputCoercion,
				fmt.Errorf("%s strategy: %w", c.name, err))
		}
		if out.Metadata == nil {
			out.Metadata = map[string]any{}
		}
		if out.Data == nil {
			out.Data = map[string]any{}
		}
		if err := out.Validate(); err != nil {
			return Output{}, err
		}
		return out, nil
	}
	return Output{}, conduiterrors.NewExecutionError(conduiterrors.KindOutputCoercion,
		fmt.Errorf("cannot convert %T to an agent output", result))
}

func fromOutput(result any) (Output, bool, error) {
	switch typed := result.(type) {
	case Output:
		return typed, true, nil
	case *Output:
		if typed == nil {
			return Output{}, true, fmt.Errorf("nil output")
		}
		return *typed, true, nil
	}
	return Output{}, false, nil
}

func fromMapping(result any) (Output, bool, error) {
	m, ok := result.(map[string]any)
	if !ok {
		return Output{}, false, nil
	}
	out, err := decodeEnvelope(m)
	return out, true, err
}

func fromMapper(result any) (Output, bool, error) {
	mapper, ok := result.(Mapper)
	if !ok {
		return Output{}, false, nil
	}
	out, err := decodeEnvelope(mapper.ToMap())
	return out, true, err
}

func fromPairs(result any) (Output, bool, error) {
	var m map[string]any
	switch typed := result.(type) {
	case []Pair:
		m = make(map[string]any, len(typed))
		for _, p := range typed {
			m[p.Key] = p.Value
		}
	case iter.Seq2[string, any]:
		m = map[string]any{}
		for k, v := range typed {
			m[k] = v
		}
	default:
		return Output{}, false, nil
	}
	out, err := decodeEnvelope(m)
	return out, true, err
}

type envelope struct {
	Output     map[string]any `mapstructure:"output"`
	Confidence *float64       `mapstructure:"confidence"`
	Metadata   map[string]any `mapstructure:"metadata"`
}

func decodeEnvelope(m map[string]any) (Output, error) {
	if _, ok := m["output"]; !ok {
		return Output{}, fmt.Errorf("missing %q key", "output")
	}
	var env envelope
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Output{}, err
	}
	if err := decoder.Decode(m); err != nil {
		return Output{}, err
	}
	out := Output{Data: env.Output, Confidence: 1.0, Metadata: env.Metadata}
	if env.Confidence != nil {
		out.Confidence = *env.Confidence
	}
	return out, nil
}
