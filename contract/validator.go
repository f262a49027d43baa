package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Validate parses rawText into a candidate object and checks every field of
// schema against its kind and constraints. It is pure and is the trust boundary
// between untrusted backend text and the rest of the system.
func Validate(schema *Schema, rawText string) *ValidationReport {
	obj, err := parseObject(rawText)
	if err != nil {
		return &ValidationReport{
			Succeeded: false,
			Violations: []Violation{{
				Field:    ResponseField,
				Kind:     ViolationUnparsable,
				Expected: "a JSON object with fields " + strings.Join(schema.FieldNames(), ", "),
				Actual:   string(ViolationUnparsable),
			}},
		}
	}
	return checkObject(schema, obj)
}

// ValidateValue re-validates an already parsed value, e.g. one taken from a
// previous report.
func ValidateValue(schema *Schema, value map[string]any) *ValidationReport {
	data, err := json.Marshal(value)
	if err != nil {
		return Validate(schema, "")
	}
	return Validate(schema, string(data))
}

// Validate is a convenience for Validate(s, rawText).
func (s *Schema) Validate(rawText string) *ValidationReport {
	return Validate(s, rawText)
}

var errNotObject = errors.New("response is not a JSON object")

// parseObject decodes rawText as a single JSON object. Only when the bare text
// is not an object does it fall back to extracting one from fences or prose, so
// a conformant object that merely mentions a code fence is taken as is.
// Numbers are kept as json.Number so integers are not rounded through float64.
func parseObject(rawText string) (map[string]any, error) {
	if obj, err := decodeObject(strings.TrimSpace(rawText)); err == nil {
		return obj, nil
	}
	return decodeObject(extractJSON(rawText))
}

func decodeObject(candidate string) (map[string]any, error) {
	if candidate == "" || candidate[0] != '{' {
		return nil, errNotObject
	}

	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obj == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON object")
	}
	return obj, nil
}

func checkObject(schema *Schema, obj map[string]any) *ValidationReport {
	value := make(map[string]any, len(obj))
	var violations []Violation

	for _, f := range schema.fields {
		raw, present := obj[f.Name]
		if !present {
			violations = append(violations, Violation{
				Field:    f.Name,
				Kind:     ViolationMissing,
				Expected: f.Constraint(),
				Actual:   string(ViolationMissing),
			})
			continue
		}
		normalized, ok := checkField(f, raw)
		value[f.Name] = normalized
		if !ok {
			violations = append(violations, Violation{
				Field:    f.Name,
				Kind:     ViolationConstraint,
				Expected: f.Constraint(),
				Actual:   renderActual(raw),
			})
		}
	}

	// Undeclared keys, sorted so reports are deterministic.
	var extra []string
	for k := range obj {
		if _, declared := schema.index[k]; !declared {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		value[k] = obj[k]
		violations = append(violations, Violation{
			Field:    k,
			Kind:     ViolationUnexpected,
			Expected: "no such field (not declared by the contract)",
			Actual:   renderActual(obj[k]),
		})
	}

	return &ValidationReport{
		Succeeded:  len(violations) == 0,
		Value:      value,
		Violations: violations,
	}
}

// checkField returns the normalised value and whether it satisfies f.
// When the value has the wrong shape the raw value is returned unchanged.
func checkField(f FieldSpec, raw any) (any, bool) {
	switch f.Kind {
	case KindInteger:
		n, ok := asInteger(raw)
		if !ok {
			return raw, false
		}
		return n, n >= f.Min && n <= f.Max

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return raw, false
		}
		for _, allowed := range f.Values {
			if s == allowed {
				return s, true
			}
		}
		return s, false

	case KindList:
		items, ok := raw.([]any)
		if !ok {
			return raw, false
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, isString := item.(string)
			if !isString {
				return raw, false
			}
			out = append(out, s)
		}
		if len(out) < f.MinItems {
			return out, false
		}
		for _, s := range out {
			if strings.TrimSpace(s) == "" {
				return out, false
			}
		}
		return out, true

	default:
		s, ok := raw.(string)
		if !ok {
			return raw, false
		}
		return s, strings.TrimSpace(s) != ""
	}
}

// asInteger accepts JSON numbers with an integral value (80 and 80.0 alike).
func asInteger(raw any) (int64, bool) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, false
	}
	if n, err := num.Int64(); err == nil {
		return n, true
	}
	f, err := num.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// renderActual formats an offending value for diagnostics: strings in single
// quotes, everything else as compact JSON.
func renderActual(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + t + "'"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
