package tokenizer

import "unicode"

const (
	defaultEstimatorWindow = 4096

	// 经验值：拉丁字符约 4 个一个 token，CJK 约 1.5 个一个 token
	latinCharsPerToken = 4.0
	cjkCharsPerToken   = 1.5

	// 每条消息的角色标记与分隔符开销，以及对话结尾的固定开销
	messageOverhead = 4
	replyPriming    = 3
)

// EstimatorTokenizer 按字符数估算 token，用于 tiktoken 不认识的模型（本地模型、兼容网关）。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer 创建估算器，maxTokens <= 0 时使用 4096。
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultEstimatorWindow
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	var cjk, other int
	for _, r := range text {
		if isWideScript(r) {
			cjk++
		} else {
			other++
		}
	}

	n := int(float64(cjk)/cjkCharsPerToken + float64(other)/latinCharsPerToken)
	return max(n, 1), nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := replyPriming
	for _, m := range messages {
		n, err := e.CountTokens(m.Content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// isWideScript 判断字符是否属于按 CJK 比例计数的文字
func isWideScript(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK 标点
		(r >= 0xFF00 && r <= 0xFFEF) // 全角字符
}
