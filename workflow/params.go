package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ParamType names the accepted value shape for a parameter.
type ParamType string

// Parameter types. An empty type accepts any value.
const (
	TypeString   ParamType = "string"
	TypeInt      ParamType = "int"
	TypeFloat    ParamType = "float"
	TypeBool     ParamType = "bool"
	TypeList     ParamType = "list"
	TypeMap      ParamType = "map"
	TypeDuration ParamType = "duration"
)

// ParamSpec declares one accepted parameter of a workflow.
type ParamSpec struct {
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Type        ParamType `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any     `json:"enum,omitempty" yaml:"enum,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// FieldError describes one offending parameter.
type FieldError struct {
	Param   string `json:"param"`
	Message string `json:"message"`
}

// ValidationError reports every offending parameter, not just the first.
// It is returned by ValidateParams before any execution record exists.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Param+": "+f.Message)
	}
	return "cascade: invalid parameters: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(param, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Param: param, Message: fmt.Sprintf(format, args...)})
}

// ValidateParams checks raw parameters against the definition's schema
// and returns the typed parameter map. Defaults are applied for absent
// optional parameters. Unknown keys, missing required parameters, type
// mismatches, and enum violations are all collected into a single
// ValidationError.
func ValidateParams(def *Definition, raw map[string]any) (map[string]any, error) {
	verr := &ValidationError{}
	typed := make(map[string]any, len(def.Params))

	declared := make(map[string]struct{}, len(def.Params))
	for i := range def.Params {
		spec := &def.Params[i]
		declared[spec.Name] = struct{}{}

		value, present := raw[spec.Name]
		if !present {
			switch {
			case spec.Default != nil:
				typed[spec.Name] = spec.Default
			case spec.Required:
				verr.add(spec.Name, "required parameter is missing")
			}
			continue
		}

		coerced, err := coerceParam(spec, value)
		if err != nil {
			verr.add(spec.Name, "%v", err)
			continue
		}

		if len(spec.Enum) > 0 && !enumAllows(spec.Enum, coerced) {
			verr.add(spec.Name, "value %v is not one of %v", coerced, spec.Enum)
			continue
		}

		typed[spec.Name] = coerced
	}

	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		verr.add(key, "unknown parameter")
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return typed, nil
}

// coerceParam converts a raw value to the parameter's declared type. Numeric
// conversions accept the types JSON and YAML decoders produce.
func coerceParam(spec *ParamSpec, value any) (any, error) {
	switch spec.Type {
	case "", TypeMap:
		if spec.Type == TypeMap {
			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected map, got %T", value)
			}
			return m, nil
		}
		return value, nil

	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil

	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int64(v), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}

	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}

	case TypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil

	case TypeList:
		l, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", value)
		}
		return l, nil

	case TypeDuration:
		switch v := value.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q", v)
			}
			return d, nil
		default:
			return nil, fmt.Errorf("expected duration string, got %T", value)
		}

	default:
		return nil, fmt.Errorf("unsupported parameter type %q", spec.Type)
	}
}

// enumAllows compares the coerced value against the allowed set. Values
// are compared by their printed form so that, e.g., an int64 coerced from
// a JSON float matches an int enum entry.
func enumAllows(enum []any, value any) bool {
	got := fmt.Sprint(value)
	for _, allowed := range enum {
		if fmt.Sprint(allowed) == got {
			return true
		}
	}
	return false
}
