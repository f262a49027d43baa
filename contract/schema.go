package contract

import (
	"strings"

	"github.com/BaSui01/strictgen/types"
)

// FieldKind is the value kind a field must hold.
type FieldKind string

const (
	KindInteger FieldKind = "bounded integer"
	KindEnum    FieldKind = "enumerated string"
	KindList    FieldKind = "list of strings"
	KindString  FieldKind = "free-form string"
)

// FieldSpec describes one field of a schema.
// Only the constraint fields relevant to Kind are consulted.
type FieldSpec struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Description string    `json:"description,omitempty"`

	// KindInteger: inclusive range.
	Min int64 `json:"min,omitempty"`
	Max int64 `json:"max,omitempty"`

	// KindEnum: the fixed allowed set, matched case-sensitively.
	Values []string `json:"values,omitempty"`

	// KindList: minimum number of entries, at least 1.
	MinItems int `json:"min_items,omitempty"`
}

// IntegerField creates a bounded integer field accepting [min, max].
func IntegerField(name string, min, max int64) FieldSpec {
	return FieldSpec{Name: name, Kind: KindInteger, Min: min, Max: max}
}

// EnumField creates an enumerated string field.
func EnumField(name string, values ...string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindEnum, Values: append([]string(nil), values...)}
}

// ListField creates a non-empty ordered list of non-blank strings.
func ListField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindList, MinItems: 1}
}

// StringField creates a free-form non-blank string field.
func StringField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindString}
}

// WithDescription returns a copy of f with a human-readable description.
func (f FieldSpec) WithDescription(desc string) FieldSpec {
	f.Description = desc
	return f
}

// WithMinItems returns a copy of f requiring at least n list entries.
func (f FieldSpec) WithMinItems(n int) FieldSpec {
	f.MinItems = n
	return f
}

func (f FieldSpec) clone() FieldSpec {
	f.Values = append([]string(nil), f.Values...)
	return f
}

// check validates the field definition itself.
func (f FieldSpec) check() error {
	if strings.TrimSpace(f.Name) == "" {
		return types.NewError(types.ErrSchemaDefinition, "field name must not be blank")
	}
	switch f.Kind {
	case KindInteger:
		if f.Min > f.Max {
			return types.Errorf(types.ErrSchemaDefinition, "field %s: min %d exceeds max %d", f.Name, f.Min, f.Max)
		}
	case KindEnum:
		if len(f.Values) == 0 {
			return types.Errorf(types.ErrSchemaDefinition, "field %s: enumerated set must not be empty", f.Name)
		}
		seen := make(map[string]struct{}, len(f.Values))
		for _, v := range f.Values {
			if strings.TrimSpace(v) == "" {
				return types.Errorf(types.ErrSchemaDefinition, "field %s: enumerated value must not be blank", f.Name)
			}
			if _, dup := seen[v]; dup {
				return types.Errorf(types.ErrSchemaDefinition, "field %s: duplicate enumerated value %q", f.Name, v)
			}
			seen[v] = struct{}{}
		}
	case KindList:
		if f.MinItems < 1 {
			return types.Errorf(types.ErrSchemaDefinition, "field %s: min items must be at least 1, got %d", f.Name, f.MinItems)
		}
	case KindString:
	default:
		return types.Errorf(types.ErrSchemaDefinition, "field %s: unknown kind %q", f.Name, f.Kind)
	}
	return nil
}

// Schema is an ordered set of unique fields plus a description of the
// artifact's purpose. It is immutable after NewSchema returns and safe to share.
type Schema struct {
	description string
	fields      []FieldSpec
	index       map[string]int
}

// NewSchema builds a schema, failing with ErrSchemaDefinition on duplicate
// field names, empty enumerated sets or otherwise malformed fields.
func NewSchema(description string, fields ...FieldSpec) (*Schema, error) {
	if len(fields) == 0 {
		return nil, types.NewError(types.ErrSchemaDefinition, "schema must declare at least one field")
	}

	s := &Schema{
		description: strings.TrimSpace(description),
		fields:      make([]FieldSpec, 0, len(fields)),
		index:       make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.check(); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, types.Errorf(types.ErrSchemaDefinition, "duplicate field name %q", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f.clone())
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for package-level
// schema definitions.
func MustSchema(description string, fields ...FieldSpec) *Schema {
	s, err := NewSchema(description, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Description returns the artifact description.
func (s *Schema) Description() string { return s.description }

// Fields returns a copy of the field list in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i].clone(), true
}

// FieldNames returns the field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}
