package tools

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// ValidationError reports a specific field violation. It is returned before
// any operation is attempted; validation failures are never retried.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: field %q %s", e.Tool, e.Field, e.Reason)
}

// Args is a validated, default-filled argument map.
type Args map[string]any

// String returns the named argument as a string, or def when absent.
func (a Args) String(name, def string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return def
}

// Int returns the named argument as an int, or def when absent.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Object returns the named argument as a map, or nil when absent.
func (a Args) Object(name string) map[string]any {
	if v, ok := a[name].(map[string]any); ok {
		return v
	}
	return nil
}

// validate checks raw arguments against the definition and returns a copy
// with defaults applied. The first violation found is reported with the
// offending field and rule.
func (d *Definition) validate(raw map[string]any) (Args, error) {
	fail := func(field, reason string) (Args, error) {
		return nil, &ValidationError{Tool: d.Name, Field: field, Reason: reason}
	}

	args := make(Args, len(d.Fields))

	for _, f := range d.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return fail(f.Name, "is required")
			}
			if f.HasDefaultStr {
				args[f.Name] = f.DefaultString
			} else if f.DefaultNumber != nil {
				args[f.Name] = *f.DefaultNumber
			}
			continue
		}

		switch f.Type {
		case FieldString:
			s, ok := v.(string)
			if !ok {
				return fail(f.Name, "must be a string")
			}
			n := utf8.RuneCountInString(s)
			if f.Required && n == 0 && f.MinLen == 0 {
				return fail(f.Name, "must not be empty")
			}
			if f.MinLen > 0 && n < f.MinLen {
				return fail(f.Name, fmt.Sprintf("must be at least %d characters", f.MinLen))
			}
			if f.MaxLen > 0 && n > f.MaxLen {
				return fail(f.Name, fmt.Sprintf("must be at most %d characters", f.MaxLen))
			}
			if len(f.Enum) > 0 && !contains(f.Enum, s) {
				return fail(f.Name, fmt.Sprintf("must be one of %v", f.Enum))
			}
			args[f.Name] = s

		case FieldNumber:
			num, ok := asFloat(v)
			if !ok {
				return fail(f.Name, "must be a number")
			}
			if f.Min != nil && num < *f.Min {
				return fail(f.Name, fmt.Sprintf("must be >= %v", *f.Min))
			}
			if f.Max != nil && num > *f.Max {
				return fail(f.Name, fmt.Sprintf("must be <= %v", *f.Max))
			}
			args[f.Name] = num

		case FieldBoolean:
			b, ok := v.(bool)
			if !ok {
				return fail(f.Name, "must be a boolean")
			}
			args[f.Name] = b

		case FieldObject:
			obj, ok := v.(map[string]any)
			if !ok {
				return fail(f.Name, "must be an object")
			}
			args[f.Name] = obj
		}
	}

	return args, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
