package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 统一的 token 计数接口，会话记忆窗口用它裁剪历史消息。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 包使用的轻量级消息结构，避免依赖 llm 包。
type Message struct {
	Role    string
	Content string
}

// 全局分词器注册表.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register 为给定的模型名称注册分词器.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// lookup 按精确名称查找，其次按最长前缀匹配（"gpt-4o" 匹配 "gpt-4o-mini-2024"）。
func lookup(model string) (Tokenizer, bool) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	return longestPrefix(modelTokenizers, model)
}

// longestPrefix 先按精确键查找，再取 key 的最长前缀项
func longestPrefix[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	var (
		best    V
		bestLen = -1
	)
	for prefix, v := range m {
		if len(prefix) > bestLen && strings.HasPrefix(key, prefix) {
			best, bestLen = v, len(prefix)
		}
	}
	return best, bestLen >= 0
}

// ForModel 返回模型对应的分词器：
// 注册表命中时使用注册的分词器，已知 OpenAI 模型使用 tiktoken，
// 其余模型使用估算器。tiktoken 编码加载失败时自动回退到估算器。
func ForModel(model string) Tokenizer {
	if t, ok := lookup(model); ok {
		return t
	}
	estimator := NewEstimatorTokenizer(model, 0)
	if tk, ok := newTiktokenTokenizer(model); ok {
		return &fallbackTokenizer{primary: tk, secondary: estimator}
	}
	return estimator
}

// fallbackTokenizer 在主分词器出错时使用备用分词器。
type fallbackTokenizer struct {
	primary   Tokenizer
	secondary Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.secondary.CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	if n, err := f.primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.secondary.CountMessages(messages)
}

func (f *fallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallbackTokenizer) Name() string { return f.primary.Name() }
