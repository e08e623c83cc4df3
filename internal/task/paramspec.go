package task

import "fmt"

// TypeTag is one of the six parameter types a schema may declare.
type TypeTag string

const (
	TypeString  TypeTag = "string"
	TypeInteger TypeTag = "integer"
	TypeNumber  TypeTag = "number"
	TypeBoolean TypeTag = "boolean"
	TypeArray   TypeTag = "array"
	TypeObject  TypeTag = "object"
)

// Validator is a predicate over a single parameter value. It returns nil
// when the value is acceptable, or an error describing why not.
// Cross-field rules over the whole parameter document use
// CompositeValidator instead.
type Validator func(value any) error

// ParamSpec declares one parameter of a task type's schema.
type ParamSpec struct {
	Name        string
	Type        TypeTag
	Required    bool
	Default     any
	Description string
	Validator   Validator
}

// CompositeValidator is a named cross-field validator evaluated over the
// full, defaulted parameter document ("offset requires limit"-style
// rules).
type CompositeValidator struct {
	Name string
	Fn   func(params map[string]any) error
}

func matchesType(tag TypeTag, v any) bool {
	switch tag {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		case float32:
			return n == float32(int64(n))
		default:
			return false
		}
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

func typeMismatchError(name string, tag TypeTag, v any) error {
	return fmt.Errorf("parameter %q: expected %s, got %T", name, tag, v)
}
