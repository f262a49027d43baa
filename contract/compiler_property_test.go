package contract

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feedback propagation: every violation description appears verbatim in the
// compiled request, in order.
func TestProperty_Compile_EmbedsEveryViolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	schema := MustSchema("desc", IntegerField("score", 1, 100), StringField("name"))
	compiler, err := NewCompiler(schema, "{{contract}}\n{{input}}")
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("corrective section lists each violation", prop.ForAll(
		func(fields []string, actuals []string, input string) bool {
			n := len(fields)
			if len(actuals) < n {
				n = len(actuals)
			}
			violations := make([]Violation, 0, n)
			for i := 0; i < n; i++ {
				violations = append(violations, Violation{
					Field:    fields[i],
					Kind:     ViolationConstraint,
					Expected: "a non-blank string",
					Actual:   "'" + actuals[i] + "'",
				})
			}

			req := compiler.Compile(input, violations)
			if len(violations) == 0 {
				return !req.IsRepair() && !strings.Contains(req.Instruction, "did not satisfy")
			}

			pos := 0
			for _, v := range violations {
				idx := strings.Index(req.Instruction[pos:], v.Describe())
				if idx < 0 {
					t.Logf("missing %q", v.Describe())
					return false
				}
				pos += idx + len(v.Describe())
			}
			return strings.Contains(req.Instruction, input)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Rendering is a pure function of the schema.
func TestProperty_RenderContract_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("equal schemas render equal text", prop.ForAll(
		func(name string, min int64, span int64, values []string) bool {
			if len(values) == 0 {
				values = []string{"Coupe"}
			}
			values = dedupe(values)
			build := func() *Schema {
				return MustSchema("desc",
					IntegerField(name+"_n", min, min+span),
					EnumField(name+"_e", values...),
				)
			}
			return build().RenderContract() == build().RenderContract()
		},
		gen.Identifier(),
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(0, 1000),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := in[:0:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
