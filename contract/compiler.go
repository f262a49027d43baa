package contract

import (
	"regexp"
	"strings"

	"github.com/BaSui01/strictgen/types"
)

// Template placeholders. Both must appear in an instruction template.
const (
	PlaceholderContract = "contract"
	PlaceholderInput    = "input"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// GenerationRequest is the backend-ready request for one attempt.
type GenerationRequest struct {
	// Instruction is the compiled text: template with the contract and the
	// user input substituted, followed by the corrective section if any.
	Instruction        string      `json:"instruction"`
	UserInput          string      `json:"user_input"`
	PreviousViolations []Violation `json:"previous_violations,omitempty"`
}

// Text returns the full prompt sent to the backend.
func (r GenerationRequest) Text() string { return r.Instruction }

// IsRepair reports whether the request carries feedback from a failed attempt.
func (r GenerationRequest) IsRepair() bool { return len(r.PreviousViolations) > 0 }

// Compiler merges an instruction template with a schema contract. A Compiler
// is immutable and safe for concurrent use.
type Compiler struct {
	schema   *Schema
	template string
	contract string
}

// NewCompiler checks the template and pre-renders the schema contract.
// A template missing {{contract}} or {{input}}, or naming any other
// placeholder, fails with ErrTemplate.
func NewCompiler(schema *Schema, template string) (*Compiler, error) {
	if schema == nil {
		return nil, types.NewError(types.ErrTemplate, "schema must not be nil")
	}
	if err := checkTemplate(template); err != nil {
		return nil, err
	}
	return &Compiler{
		schema:   schema,
		template: template,
		contract: schema.RenderContract(),
	}, nil
}

// Schema returns the schema the compiler embeds.
func (c *Compiler) Schema() *Schema { return c.schema }

// Compile assembles the request for one attempt. It does no I/O.
func (c *Compiler) Compile(userInput string, previousViolations []Violation) GenerationRequest {
	// Single pass over the template: the user input is inserted verbatim and
	// never re-expanded, even if it contains placeholder syntax.
	instruction := placeholderPattern.ReplaceAllStringFunc(c.template, func(m string) string {
		switch placeholderName(m) {
		case PlaceholderContract:
			return c.contract
		default:
			return userInput
		}
	})

	var violations []Violation
	if len(previousViolations) > 0 {
		violations = append(violations, previousViolations...)
		instruction += correctiveSection(violations)
	}

	return GenerationRequest{
		Instruction:        instruction,
		UserInput:          userInput,
		PreviousViolations: violations,
	}
}

// Compile is the one-shot form of NewCompiler(...).Compile(...).
func Compile(schema *Schema, template, userInput string, previousViolations []Violation) (GenerationRequest, error) {
	c, err := NewCompiler(schema, template)
	if err != nil {
		return GenerationRequest{}, err
	}
	return c.Compile(userInput, previousViolations), nil
}

func checkTemplate(template string) error {
	found := map[string]bool{}
	for _, m := range placeholderPattern.FindAllString(template, -1) {
		name := placeholderName(m)
		switch name {
		case PlaceholderContract, PlaceholderInput:
			found[name] = true
		default:
			return types.Errorf(types.ErrTemplate, "unknown placeholder {{%s}}", name)
		}
	}
	for _, required := range []string{PlaceholderContract, PlaceholderInput} {
		if !found[required] {
			return types.Errorf(types.ErrTemplate, "template is missing required placeholder {{%s}}", required)
		}
	}
	return nil
}

func placeholderName(match string) string {
	sub := placeholderPattern.FindStringSubmatch(match)
	if len(sub) < 2 {
		return ""
	}
	return sub[1]
}

func correctiveSection(violations []Violation) string {
	var sb strings.Builder
	sb.WriteString("\n\nYour previous answer did not satisfy the contract. ")
	sb.WriteString("Fix every problem listed below and answer again with the complete JSON object:\n")
	for _, v := range violations {
		sb.WriteString("- ")
		sb.WriteString(v.Describe())
		sb.WriteString("\n")
	}
	return sb.String()
}
