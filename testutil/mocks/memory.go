// =============================================================================
// 🧠 MockMemory - 会话记忆模拟实现
// =============================================================================
// 满足 session.Memory 接口，支持错误注入与调用计数
//
// 使用方法:
//
//	memory := mocks.NewMockMemory().WithAppendError(errors.New("down"))
//	sess, _ := session.Open(ctx, cfg, provider, logger, session.WithMemory(memory))
//
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/strictgen/llm"
)

// MockMemory 是会话记忆的模拟实现
type MockMemory struct {
	mu sync.RWMutex

	messages []llm.Message

	// 错误注入
	appendErr error
	readErr   error
	resetErr  error

	resetCount int
}

// NewMockMemory 创建新的 MockMemory
func NewMockMemory() *MockMemory {
	return &MockMemory{}
}

// WithMessages 预置历史消息
func (m *MockMemory) WithMessages(msgs ...llm.Message) *MockMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append([]llm.Message(nil), msgs...)
	return m
}

// WithAppendError 设置追加错误
func (m *MockMemory) WithAppendError(err error) *MockMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
	return m
}

// WithReadError 设置读取错误
func (m *MockMemory) WithReadError(err error) *MockMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	return m
}

// WithResetError 设置重置错误
func (m *MockMemory) WithResetError(err error) *MockMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetErr = err
	return m
}

// Append 追加消息
func (m *MockMemory) Append(_ context.Context, msgs ...llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

// Messages 返回全部消息
func (m *MockMemory) Messages(_ context.Context) ([]llm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

// Reset 清空消息
func (m *MockMemory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
	if m.resetErr != nil {
		return m.resetErr
	}
	m.messages = nil
	return nil
}

// ResetCount 返回 Reset 调用次数
func (m *MockMemory) ResetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resetCount
}

// Len 返回当前消息数
func (m *MockMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}
