package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/strictgen/llm"
)

// StatusModelOverloaded 部分后端在模型过载时返回的非标准状态码
const StatusModelOverloaded = 529

// maxErrorBody 读取错误响应体的上限
const maxErrorBody = 64 << 10

// statusClass 描述某个状态码对应的错误码与可重试性
type statusClass struct {
	code      llm.ErrorCode
	retryable bool
}

// statusClasses 已知状态码的分类；未列出的 5xx 视为可重试的上游错误，其余为永久错误
var statusClasses = map[int]statusClass{
	http.StatusBadRequest:         {llm.ErrInvalidRequest, false},
	http.StatusUnauthorized:       {llm.ErrUnauthorized, false},
	http.StatusForbidden:          {llm.ErrForbidden, false},
	http.StatusRequestTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusTooManyRequests:    {llm.ErrRateLimited, true},
	http.StatusBadGateway:         {llm.ErrUpstreamError, true},
	http.StatusServiceUnavailable: {llm.ErrUpstreamError, true},
	http.StatusGatewayTimeout:     {llm.ErrUpstreamTimeout, true},
	StatusModelOverloaded:         {llm.ErrModelOverloaded, true},
}

// quotaMarkers 400 响应中表示额度耗尽的关键字
var quotaMarkers = []string{"quota", "credit", "limit"}

// MapHTTPError 将 HTTP 状态码映射为带可重试标记的 llm.Error。
// 限流、超时、5xx 可重试；鉴权、格式、配额类错误为永久错误。
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	class, ok := statusClasses[status]
	if !ok {
		class = statusClass{code: llm.ErrUpstreamError, retryable: status >= 500}
	}
	if status == http.StatusBadRequest && mentionsQuota(msg) {
		class = statusClass{code: llm.ErrQuotaExceeded}
	}
	return &llm.Error{
		Code:       class.code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  class.retryable,
		Provider:   provider,
	}
}

func mentionsQuota(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ReadErrorMessage 读取错误响应体，优先取 JSON 错误消息，否则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}

	var e ErrorBody
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		if e.Error.Type == "" {
			return e.Error.Message
		}
		return fmt.Sprintf("%s (type: %s)", e.Error.Message, e.Error.Type)
	}
	return strings.TrimSpace(string(data))
}

// =============================================================================
// Chat Completions 线上格式
// =============================================================================

// WireMessage 线上消息
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat 对应 response_format 字段
type ResponseFormat struct {
	Type string `json:"type"`
}

// CompletionRequest POST /v1/chat/completions 请求体
type CompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []WireMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature"` // 0 也要发送，否则后端退回默认值
	TopP           float32         `json:"top_p,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	User           string          `json:"user,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// WireChoice 单个候选
type WireChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      WireMessage `json:"message"`
}

// WireUsage token 用量
type WireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse 非流式响应体
type CompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []WireChoice `json:"choices"`
	Usage   *WireUsage   `json:"usage,omitempty"`
	Created int64        `json:"created,omitempty"`
}

// ErrorBody 错误响应体
type ErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewCompletionRequest 把 llm.ChatRequest 转换为线上请求，model 由调用方选定
func NewCompletionRequest(req *llm.ChatRequest, model string) CompletionRequest {
	out := CompletionRequest{
		Model:       model,
		Messages:    make([]WireMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		User:        req.TraceID,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, WireMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.ResponseFormat != "" {
		out.ResponseFormat = &ResponseFormat{Type: req.ResponseFormat}
	}
	return out
}

// ChatResponse 把线上响应转换为 llm.ChatResponse
func (r CompletionResponse) ChatResponse(provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       r.ID,
		Provider: provider,
		Model:    r.Model,
		Choices:  make([]llm.ChatChoice, len(r.Choices)),
	}
	for i, c := range r.Choices {
		resp.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		}
	}
	if r.Created != 0 {
		resp.CreatedAt = time.Unix(r.Created, 0)
	}
	if u := r.Usage; u != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return resp
}

// ChooseModel 选择模型：请求 > 默认 > 兜底
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	switch {
	case req != nil && req.Model != "":
		return req.Model
	case defaultModel != "":
		return defaultModel
	default:
		return fallbackModel
	}
}
