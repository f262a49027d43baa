// MockProvider 的生成后端测试模拟实现。
//
// 支持按脚本逐次返回响应、错误注入、延迟与健康检查失败场景。
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/strictgen/llm"
)

// --- MockProvider 结构 ---

// Step 描述一次 Completion 调用的结果：Content 与 Err 二选一
type Step struct {
	Content string
	Err     error
	Delay   time.Duration
}

// Reply 构造返回文本的脚本步骤
func Reply(content string) Step { return Step{Content: content} }

// Fail 构造返回错误的脚本步骤
func Fail(err error) Step { return Step{Err: err} }

// Transient 构造一个可重试的后端错误（如 429）
func Transient(msg string) *llm.Error {
	return &llm.Error{Code: llm.ErrRateLimited, Message: msg, HTTPStatus: 429, Retryable: true, Provider: "mock"}
}

// Permanent 构造一个不可重试的后端错误（如 401）
func Permanent(msg string) *llm.Error {
	return &llm.Error{Code: llm.ErrUnauthorized, Message: msg, HTTPStatus: 401, Provider: "mock"}
}

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	name  string
	steps []Step
	next  int

	// 健康检查配置
	healthErrs []error
	healthCall int

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 调用记录
	calls      []MockProviderCall
	closeCount int
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request *llm.ChatRequest
	Content string
	Error   error
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider，默认返回 "Mock response"
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:             "mock",
		steps:            []Step{Reply("Mock response")},
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse 设置固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	return m.WithScript(Reply(response))
}

// WithError 设置固定错误
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.WithScript(Fail(err))
}

// WithScript 设置逐次调用的结果；脚本用完后重复最后一步
func (m *MockProvider) WithScript(steps ...Step) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append([]Step(nil), steps...)
	m.next = 0
	return m
}

// WithDelay 为所有脚本步骤设置延迟（遵守 context 取消）
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.steps {
		m.steps[i].Delay = d
	}
	return m
}

// WithHealthErrors 设置前 N 次健康检查依次返回的错误，之后恢复健康
func (m *MockProvider) WithHealthErrors(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErrs = append([]error(nil), errs...)
	return m
}

// WithTokenUsage 设置 token 使用统计
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// --- llm.Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// HealthCheck 按 WithHealthErrors 的配置返回结果
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.healthCall
	m.healthCall++
	if idx < len(m.healthErrs) && m.healthErrs[idx] != nil {
		return &llm.HealthStatus{Healthy: false}, m.healthErrs[idx]
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 返回脚本中的下一步结果
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	step := m.steps[len(m.steps)-1]
	if m.next < len(m.steps) {
		step = m.steps[m.next]
		m.next++
	}
	name := m.name
	usage := llm.ChatUsage{
		PromptTokens:     m.promptTokens,
		CompletionTokens: m.completionTokens,
		TotalTokens:      m.promptTokens + m.completionTokens,
	}
	m.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.record(req, "", ctx.Err())
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		m.record(req, "", err)
		return nil, err
	}

	if step.Err != nil {
		m.record(req, "", step.Err)
		return nil, step.Err
	}

	m.record(req, step.Content, nil)
	return &llm.ChatResponse{
		ID:       fmt.Sprintf("mock-%d", m.CallCount()),
		Provider: name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: step.Content},
		}},
		Usage:     usage,
		CreatedAt: time.Now(),
	}, nil
}

// Close 记录关闭次数
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	return nil
}

// --- 调用记录 ---

func (m *MockProvider) record(req *llm.ChatRequest, content string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Content: content, Error: err})
}

// Calls 返回所有调用记录的副本
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回 Completion 调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastPrompt 返回最后一次请求中最后一条用户消息
func (m *MockProvider) LastPrompt() string {
	calls := m.Calls()
	if len(calls) == 0 {
		return ""
	}
	msgs := calls[len(calls)-1].Request.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// HealthCheckCount 返回健康检查调用次数
func (m *MockProvider) HealthCheckCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCall
}

// CloseCount 返回 Close 调用次数
func (m *MockProvider) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// Reset 清空调用记录并重置脚本位置
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.next = 0
	m.healthCall = 0
}
