package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// Constraint renders the field's constraint as a short phrase, e.g.
// "an integer between 1 and 100 (inclusive)". Used in the contract text and
// in violation descriptions.
func (f FieldSpec) Constraint() string {
	switch f.Kind {
	case KindInteger:
		return fmt.Sprintf("an integer between %d and %d (inclusive)", f.Min, f.Max)
	case KindEnum:
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			quoted[i] = strconv.Quote(v)
		}
		return "one of {" + strings.Join(quoted, ", ") + "}"
	case KindList:
		if f.MinItems <= 1 {
			return "a non-empty list of non-blank strings"
		}
		return fmt.Sprintf("a list of at least %d non-blank strings", f.MinItems)
	case KindString:
		return "a non-blank string"
	default:
		return string(f.Kind)
	}
}

// RenderContract produces the canonical description of every field, suitable
// for embedding in an instruction. Identical schemas always render identical
// text.
func (s *Schema) RenderContract() string {
	var sb strings.Builder

	if s.description != "" {
		sb.WriteString(s.description)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Respond with a single JSON object and nothing else: no prose, no markdown code fences.\n")
	sb.WriteString("The object must contain exactly these fields, in this order:\n")
	for i, f := range s.fields {
		fmt.Fprintf(&sb, "%d. %q (%s): must be %s.", i+1, f.Name, f.Kind, f.Constraint())
		if f.Kind == KindEnum {
			sb.WriteString(" Use the exact spelling shown (case-sensitive).")
		}
		if f.Description != "" {
			sb.WriteString(" ")
			sb.WriteString(f.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Do not add any other fields.\n")

	if doc, err := json.MarshalIndent(s.JSONSchema(), "", "  "); err == nil {
		sb.WriteString("\nJSON Schema:\n")
		sb.Write(doc)
		sb.WriteString("\n")
	}

	return sb.String()
}

// JSONSchema returns the structural contract as a JSON Schema document.
// Properties keep declaration order and additional properties are rejected.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:                 "object",
		Description:          s.description,
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
		Required:             s.FieldNames(),
	}
	for _, f := range s.fields {
		root.Properties.Set(f.Name, fieldSchema(f))
	}
	return root
}

func fieldSchema(f FieldSpec) *jsonschema.Schema {
	one := uint64(1)
	switch f.Kind {
	case KindInteger:
		return &jsonschema.Schema{
			Type:        "integer",
			Description: f.Description,
			Minimum:     json.Number(strconv.FormatInt(f.Min, 10)),
			Maximum:     json.Number(strconv.FormatInt(f.Max, 10)),
		}
	case KindEnum:
		values := make([]any, len(f.Values))
		for i, v := range f.Values {
			values[i] = v
		}
		return &jsonschema.Schema{
			Type:        "string",
			Description: f.Description,
			Enum:        values,
		}
	case KindList:
		minItems := uint64(f.MinItems)
		return &jsonschema.Schema{
			Type:        "array",
			Description: f.Description,
			MinItems:    &minItems,
			Items: &jsonschema.Schema{
				Type:      "string",
				MinLength: &one,
				Pattern:   `\S`,
			},
		}
	default:
		return &jsonschema.Schema{
			Type:        "string",
			Description: f.Description,
			MinLength:   &one,
			Pattern:     `\S`,
		}
	}
}
