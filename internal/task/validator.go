package task

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Schema is an ordered list of ParamSpec plus an optional set of
// cross-field composite validators, attached to a task type at
// construction.
type Schema struct {
	Params     []ParamSpec
	Composites []CompositeValidator
}

// Add appends a parameter definition, preserving declaration order.
func (s *Schema) Add(spec ParamSpec) {
	s.Params = append(s.Params, spec)
}

// AddComposite attaches a named cross-field validator.
func (s *Schema) AddComposite(v CompositeValidator) {
	s.Composites = append(s.Composites, v)
}

// WithDefaults returns params with any absent-but-defaulted ParamSpec
// filled in, without mutating the input.
func (s *Schema) WithDefaults(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(s.Params))
	for k, v := range params {
		out[k] = v
	}
	for _, spec := range s.Params {
		if _, present := out[spec.Name]; !present && spec.Default != nil {
			out[spec.Name] = spec.Default
		}
	}
	return out
}

// Validate runs every schema check and collects *all* failures in one
// pass rather than short-circuiting on the first.
func (s *Schema) Validate(params map[string]any) []error {
	defaulted := s.WithDefaults(params)
	var errs []error

	for _, spec := range s.Params {
		v, present := defaulted[spec.Name]
		if !present || v == nil {
			if spec.Required {
				errs = append(errs, fmt.Errorf("parameter %q is required", spec.Name))
			}
			continue
		}
		if !matchesType(spec.Type, v) {
			errs = append(errs, typeMismatchError(spec.Name, spec.Type, v))
			continue
		}
		if spec.Validator != nil {
			if err := spec.Validator(v); err != nil {
				errs = append(errs, fmt.Errorf("parameter %q: %w", spec.Name, err))
			}
		}
	}

	for _, c := range s.Composites {
		if err := c.Fn(defaulted); err != nil {
			errs = append(errs, fmt.Errorf("validator %q: %w", c.Name, err))
		}
	}

	return errs
}

// NewCELValidator compiles a CEL boolean expression over the parameter
// document (exposed as the `params` map variable) into a
// CompositeValidator. A false result produces failMessage as the error;
// a non-boolean result or a compile/eval error is surfaced directly.
// Schemas use it for cross-field rules like
// "params.offset == 0 || params.limit > 0".
func NewCELValidator(name, expr, failMessage string) (CompositeValidator, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return CompositeValidator{}, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return CompositeValidator{}, fmt.Errorf("compile expression %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return CompositeValidator{}, fmt.Errorf("build CEL program: %w", err)
	}

	return CompositeValidator{
		Name: name,
		Fn: func(params map[string]any) error {
			out, _, err := prg.Eval(map[string]any{"params": params})
			if err != nil {
				return fmt.Errorf("evaluate %q: %w", expr, err)
			}
			ok, isBool := out.Value().(bool)
			if !isBool {
				return fmt.Errorf("expression %q did not evaluate to a boolean", expr)
			}
			if !ok {
				return fmt.Errorf("%s", failMessage)
			}
			return nil
		},
	}, nil
}
