package agent

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	conduiterrors "conduit/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Schema validates an agent's input before execution.
type Schema interface {
	Validate(in Input) error
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(in Input) error

func (f SchemaFunc) Validate(in Input) error { return f(in) }

// AnyInput accepts every input.
func AnyInput() Schema {
	return SchemaFunc(func(Input) error { return nil })
}

// RequiredKeys requires each key to be present in the payload with a
// non-empty value.
func RequiredKeys(keys ...string) Schema {
	return SchemaFunc(func(in Input) error {
		var fields []conduiterrors.FieldError
		for _, key := range keys {
			if isBlank(in.Payload[key]) {
				fields = append(fields, conduiterrors.FieldError{Field: key, Reason: "is required"})
			}
		}
		if len(fields) > 0 {
			return &conduiterrors.InputValidationError{Fields: fields}
		}
		return nil
	})
}

func isBlank(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	}
	return false
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// StructSchema decodes the payload into T (using mapstructure tags) and
// validates it with the struct's `validate` tags.
func StructSchema[T any]() Schema {
	return SchemaFunc(func(in Input) error {
		_, err := DecodePayload[T](in.Payload)
		return err
	})
}

// DecodePayload decodes and validates payload as T. Failures are reported as
// an InputValidationError.
func DecodePayload[T any](payload map[string]any) (T, error) {
	var target T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &target,
		WeaklyTypedInput: false,
		TagName:          "mapstructure",
	})
	if err != nil {
		return target, err
	}
	if err := decoder.Decode(payload); err != nil {
		return target, &conduiterrors.InputValidationError{Err: err,
			Fields: []conduiterrors.FieldError{{Reason: err.Error()}}}
	}
	if reflect.Indirect(reflect.ValueOf(target)).Kind() != reflect.Struct {
		return target, nil
	}
	if err := structValidator.Struct(target); err != nil {
		return target, toInputValidationError(err)
	}
	return target, nil
}

func toInputValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &conduiterrors.InputValidationError{Err: err}
	}
	out := &conduiterrors.InputValidationError{Err: err}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, conduiterrors.FieldError{
			Field:  fe.Field(),
			Reason: describeTag(fe),
		})
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// OutputSchema validates a coerced output before finalize.
type OutputSchema interface {
	ValidateOutput(out Output) error
}

// OutputSchemaFunc adapts a function to OutputSchema.
type OutputSchemaFunc func(out Output) error

func (f OutputSchemaFunc) ValidateOutput(out Output) error { return f(out) }

// OutputKeys requires each key to be present in the output data.
func OutputKeys(keys ...string) OutputSchema {
	return OutputSchemaFunc(func(out Output) error {
		for _, key := range keys {
			if _, ok := out.Data[key]; !ok {
				return fmt.Errorf("output is missing %q", key)
			}
		}
		return nil
	})
}
