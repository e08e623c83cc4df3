package task

import "testing"

func TestSchemaValidateTypeMismatch(t *testing.T) {
	s := &Schema{Params: []ParamSpec{{Name: "count", Type: TypeInteger, Required: true}}}
	errs := s.Validate(map[string]any{"count": "not-a-number"})
	if len(errs) != 1 {
		t.Fatalf("errs = %d, want 1", len(errs))
	}
}

func TestSchemaValidateIntegerAcceptsWholeFloat(t *testing.T) {
	s := &Schema{Params: []ParamSpec{{Name: "count", Type: TypeInteger, Required: true}}}
	if errs := s.Validate(map[string]any{"count": float64(3)}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if errs := s.Validate(map[string]any{"count": float64(3.5)}); len(errs) == 0 {
		t.Fatalf("expected error for non-whole float as integer")
	}
}

func TestSchemaCustomValidator(t *testing.T) {
	s := &Schema{Params: []ParamSpec{{
		Name: "limit", Type: TypeInteger, Required: true,
		Validator: func(v any) error {
			if n, _ := v.(int); n <= 0 {
				return errNotPositive
			}
			return nil
		},
	}}}
	if errs := s.Validate(map[string]any{"limit": 0}); len(errs) != 1 {
		t.Fatalf("expected validator rejection, got %v", errs)
	}
	if errs := s.Validate(map[string]any{"limit": 1}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

var errNotPositive = sentinelErr("must be positive")

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

func TestSchemaCompositeValidator(t *testing.T) {
	s := &Schema{Params: []ParamSpec{
		{Name: "offset", Type: TypeInteger, Default: 0},
		{Name: "limit", Type: TypeInteger},
	}}
	s.AddComposite(CompositeValidator{
		Name: "offset_requires_limit",
		Fn: func(params map[string]any) error {
			offset, _ := params["offset"].(int)
			limit, hasLimit := params["limit"]
			if offset != 0 && (!hasLimit || limit == nil) {
				return errNotPositive
			}
			return nil
		},
	})

	if errs := s.Validate(map[string]any{"offset": 5}); len(errs) != 1 {
		t.Fatalf("expected composite validator rejection, got %v", errs)
	}
	if errs := s.Validate(map[string]any{"offset": 5, "limit": 10}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestCELValidator(t *testing.T) {
	v, err := NewCELValidator("offset_requires_limit",
		`params.offset == 0 || params.limit > 0`, "offset requires a positive limit")
	if err != nil {
		t.Fatalf("NewCELValidator: %v", err)
	}

	if err := v.Fn(map[string]any{"offset": 0, "limit": 0}); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := v.Fn(map[string]any{"offset": 5, "limit": 0}); err == nil {
		t.Fatalf("expected failure for offset without limit")
	}
	if err := v.Fn(map[string]any{"offset": 5, "limit": 10}); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestCELValidatorRejectsBadExpression(t *testing.T) {
	if _, err := NewCELValidator("broken", `params.offset ===`, "n/a"); err == nil {
		t.Fatalf("expected compile error for malformed expression")
	}
}
