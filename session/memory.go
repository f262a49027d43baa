package session

import (
	"context"
	"sync"

	"github.com/BaSui01/strictgen/llm"
	"github.com/BaSui01/strictgen/llm/tokenizer"
)

// Memory 会话记忆存储。实现必须支持并发调用。
type Memory interface {
	// Append 追加消息，超出容量时丢弃最旧的消息
	Append(ctx context.Context, msgs ...llm.Message) error

	// Messages 按时间顺序返回当前保留的消息
	Messages(ctx context.Context) ([]llm.Message, error)

	// Reset 清空记忆
	Reset(ctx context.Context) error
}

// BufferMemory 进程内记忆，保留最近 maxMessages 条消息。
type BufferMemory struct {
	mu          sync.RWMutex
	messages    []llm.Message
	maxMessages int
}

// NewBufferMemory 创建进程内记忆；maxMessages <= 0 时不限条数。
func NewBufferMemory(maxMessages int) *BufferMemory {
	return &BufferMemory{maxMessages: maxMessages}
}

func (m *BufferMemory) Append(_ context.Context, msgs ...llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msgs...)
	if m.maxMessages > 0 && len(m.messages) > m.maxMessages {
		drop := len(m.messages) - m.maxMessages
		m.messages = append([]llm.Message(nil), m.messages[drop:]...)
	}
	return nil
}

func (m *BufferMemory) Messages(_ context.Context) ([]llm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

func (m *BufferMemory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.messages = nil
	m.mu.Unlock()
	return nil
}

// windowByTokens 从最新消息往回保留，直到累计 token 数超过 limit；limit <= 0 时不裁剪。
func windowByTokens(history []llm.Message, tk tokenizer.Tokenizer, limit int) []llm.Message {
	if limit <= 0 || len(history) == 0 {
		return history
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n, err := tk.CountMessages([]tokenizer.Message{{Role: string(history[i].Role), Content: history[i].Content}})
		if err != nil {
			break
		}
		if used+n > limit {
			break
		}
		used += n
		start = i
	}
	return history[start:]
}
