// =============================================================================
// 📦 测试数据工厂 - 生成后端响应样例
// =============================================================================
// 提供合法与违规的鸡尾酒配方响应，用于校验与重试测试
// =============================================================================
package fixtures

import (
	"encoding/json"
	"fmt"
)

// RecipeOption 修改样例配方
type RecipeOption func(map[string]any)

// baseRecipe 返回一份满足配方契约的样例
func baseRecipe() map[string]any {
	return map[string]any{
		"name":             "Velvet Hour",
		"vibe_match_score": 87,
		"glassware":        "Coupe",
		"ingredients": []string{
			"2 oz bourbon",
			"0.75 oz sweet vermouth",
			"2 dashes Angostura bitters",
		},
		"instructions": []string{
			"Stir all ingredients with ice for 30 seconds.",
			"Strain into a chilled coupe.",
		},
		"garnish": "Orange twist",
		"pro_tip": "Chill the glass in the freezer for ten minutes first.",
	}
}

// WithField 覆盖任意字段
func WithField(name string, value any) RecipeOption {
	return func(m map[string]any) { m[name] = value }
}

// WithoutField 删除字段
func WithoutField(name string) RecipeOption {
	return func(m map[string]any) { delete(m, name) }
}

// WithScore 覆盖 vibe_match_score
func WithScore(score any) RecipeOption { return WithField("vibe_match_score", score) }

// WithGlassware 覆盖 glassware
func WithGlassware(glass string) RecipeOption { return WithField("glassware", glass) }

// Recipe 返回应用选项后的配方对象
func Recipe(opts ...RecipeOption) map[string]any {
	m := baseRecipe()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecipeJSON 返回应用选项后的配方 JSON
func RecipeJSON(opts ...RecipeOption) string {
	data, err := json.Marshal(Recipe(opts...))
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ValidRecipeJSON 返回合法配方 JSON
func ValidRecipeJSON() string { return RecipeJSON() }

// FencedRecipe 返回包裹在 markdown 代码块与说明文字中的合法配方
func FencedRecipe() string {
	return fmt.Sprintf("Here is your drink:\n\n```json\n%s\n```\nEnjoy!", ValidRecipeJSON())
}

// ProseResponse 返回无法解析为 JSON 对象的纯文本回复
func ProseResponse() string {
	return "I'd suggest a smoky mezcal negroni with an orange peel. Cheers!"
}
