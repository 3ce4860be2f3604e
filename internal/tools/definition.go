// Package tools owns the fixed catalogue of operations exposed to AI
// clients: each tool's input schema, its validation, and the dispatcher that
// routes calls to whichever operation backend is currently installed. The
// catalogue is the single source of truth for every transport binding.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// FieldType enumerates the primitive kinds a tool argument may have.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
)

// Field declares one tool argument and its constraints. Zero-valued bounds
// mean unbounded; a nil Min/Max means unchecked.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool

	// String constraints.
	MinLen int
	MaxLen int
	Enum   []string

	// Number constraints.
	Min *float64
	Max *float64

	// Defaults applied when the argument is absent.
	DefaultString string
	HasDefaultStr bool
	DefaultNumber *float64

	// Object sub-properties (name → description), all numbers. Only used by
	// the position rectangle today.
	ObjectProps map[string]string
}

// Annotations carry advisory behavior hints. They are metadata for the
// calling AI, not enforced by the dispatcher.
type Annotations struct {
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	OpenWorld   bool
}

// Definition is an immutable tool description, registered once at startup
// and looked up by name on every call.
type Definition struct {
	Name        string
	Description string
	Fields      []Field
	Annotations Annotations
}

// field returns the declared field with the given name, or nil.
func (d *Definition) field(name string) *Field {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// MCPTool renders the definition as an mcp-go tool so the stdio and HTTP
// bindings publish exactly the schema the dispatcher validates against.
func (d *Definition) MCPTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(d.Description),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			Title:           d.Name,
			ReadOnlyHint:    mcp.ToBoolPtr(d.Annotations.ReadOnly),
			DestructiveHint: mcp.ToBoolPtr(d.Annotations.Destructive),
			IdempotentHint:  mcp.ToBoolPtr(d.Annotations.Idempotent),
			OpenWorldHint:   mcp.ToBoolPtr(d.Annotations.OpenWorld),
		}),
	}

	for _, f := range d.Fields {
		switch f.Type {
		case FieldString:
			props := []mcp.PropertyOption{mcp.Description(f.Description)}
			if f.Required {
				props = append(props, mcp.Required())
			}
			if f.MinLen > 0 {
				props = append(props, mcp.MinLength(f.MinLen))
			}
			if f.MaxLen > 0 {
				props = append(props, mcp.MaxLength(f.MaxLen))
			}
			if len(f.Enum) > 0 {
				props = append(props, mcp.Enum(f.Enum...))
			}
			if f.HasDefaultStr {
				props = append(props, mcp.DefaultString(f.DefaultString))
			}
			opts = append(opts, mcp.WithString(f.Name, props...))

		case FieldNumber:
			props := []mcp.PropertyOption{mcp.Description(f.Description)}
			if f.Required {
				props = append(props, mcp.Required())
			}
			if f.Min != nil {
				props = append(props, mcp.Min(*f.Min))
			}
			if f.Max != nil {
				props = append(props, mcp.Max(*f.Max))
			}
			if f.DefaultNumber != nil {
				props = append(props, mcp.DefaultNumber(*f.DefaultNumber))
			}
			opts = append(opts, mcp.WithNumber(f.Name, props...))

		case FieldBoolean:
			props := []mcp.PropertyOption{mcp.Description(f.Description)}
			if f.Required {
				props = append(props, mcp.Required())
			}
			opts = append(opts, mcp.WithBoolean(f.Name, props...))

		case FieldObject:
			subProps := make(map[string]any, len(f.ObjectProps))
			for name, desc := range f.ObjectProps {
				subProps[name] = map[string]any{"type": "number", "description": desc}
			}
			props := []mcp.PropertyOption{
				mcp.Description(f.Description),
				mcp.Properties(subProps),
			}
			if f.Required {
				props = append(props, mcp.Required())
			}
			opts = append(opts, mcp.WithObject(f.Name, props...))
		}
	}

	return mcp.NewTool(d.Name, opts...)
}

func floatPtr(v float64) *float64 { return &v }
