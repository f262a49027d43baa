package recipe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/strictgen/contract"
	"github.com/BaSui01/strictgen/types"
)

// 字段名
const (
	FieldName         = "name"
	FieldScore        = "vibe_match_score"
	FieldGlassware    = "glassware"
	FieldIngredients  = "ingredients"
	FieldInstructions = "instructions"
	FieldGarnish      = "garnish"
	FieldProTip       = "pro_tip"
)

// Glassware 允许的杯型，大小写敏感
var Glassware = []string{"Coupe", "Highball", "Rocks", "Martini", "Mule Mug", "Nick and Nora"}

// Template 是 Strict Mixologist 的指令模板
const Template = `You are The Strict Mixologist, a world-class bartender and flavor architect.
Given a guest's vibe, create a precise cocktail recipe that matches the mood.

Requirements:
- Answer with a single JSON object and nothing else; it must follow the contract below exactly.
- Provide a vivid, creative name.
- vibe_match_score is an integer 1-100 indicating how well the drink fits the vibe.
- glassware must be one of the allowed values.
- ingredients must include precise measurements (e.g., "1.5 oz gin").
- instructions are concise, ordered steps.
- garnish is a single, specific item.
- pro_tip reveals a secret technique detail for excellence.

{{contract}}

Guest's vibe:
{{input}}`

var schema = contract.MustSchema(
	"A single cocktail recipe that matches the guest's mood.",
	contract.StringField(FieldName).WithDescription("Evocative name of the cocktail"),
	contract.IntegerField(FieldScore, 1, 100).WithDescription("How well the drink matches the mood"),
	contract.EnumField(FieldGlassware, Glassware...).WithDescription("Glass to serve it in"),
	contract.ListField(FieldIngredients).WithDescription("Ingredients with precise measurements, one per entry"),
	contract.ListField(FieldInstructions).WithDescription("Concise preparation steps in order"),
	contract.StringField(FieldGarnish).WithDescription("A single, specific garnish"),
	contract.StringField(FieldProTip).WithDescription("A secret detail about the technique"),
)

// Schema 返回配方契约，全局共享且不可变
func Schema() *contract.Schema { return schema }

// Recipe 是通过校验的配方
type Recipe struct {
	Name           string   `json:"name"`
	VibeMatchScore int      `json:"vibe_match_score"`
	Glassware      string   `json:"glassware"`
	Ingredients    []string `json:"ingredients"`
	Instructions   []string `json:"instructions"`
	Garnish        string   `json:"garnish"`
	ProTip         string   `json:"pro_tip"`
}

// Decode 把校验通过的值转换为 Recipe。值必须已满足 Schema()。
func Decode(value map[string]any) (*Recipe, error) {
	if report := contract.ValidateValue(schema, value); !report.Succeeded {
		return nil, types.Errorf(types.ErrInvalidRequest, "value does not satisfy the recipe contract: %s",
			strings.Join(report.Descriptions(), "; "))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode recipe value").WithCause(err)
	}
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, types.NewError(types.ErrInternalError, "decode recipe value").WithCause(err)
	}
	return &r, nil
}

// String 返回适合终端展示的多行文本
func (r *Recipe) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d/100)\n", r.Name, r.VibeMatchScore)
	fmt.Fprintf(&b, "Glass: %s\n", r.Glassware)
	b.WriteString("Ingredients:\n")
	for _, in := range r.Ingredients {
		fmt.Fprintf(&b, "  - %s\n", in)
	}
	b.WriteString("Instructions:\n")
	for i, step := range r.Instructions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "Garnish: %s\n", r.Garnish)
	fmt.Fprintf(&b, "Pro tip: %s\n", r.ProTip)
	return b.String()
}
