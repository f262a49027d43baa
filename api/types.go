package api

import (
	"time"

	"github.com/BaSui01/strictgen/generation"
)

// =============================================================================
// 生成请求与结果
// =============================================================================

// ArtifactRequest 是 POST /v1/artifacts 的请求体。
// @Description 生成请求
type ArtifactRequest struct {
	// 自由文本描述
	Vibe string `json:"vibe" example:"rainy jazz night" binding:"required"`
}

// ArtifactResponse 是对外可见的生成结果，只包含通过校验的值或结构化失败信息。
// @Description 生成结果
type ArtifactResponse struct {
	// 生成 ID
	ID string `json:"id" example:"6f1c..."`
	// 终态: succeeded, exhausted, failed
	Status string `json:"status" example:"succeeded"`
	// 消耗的尝试次数
	Attempts int `json:"attempts" example:"2"`
	// 通过校验的对象，仅在成功时存在
	Value map[string]any `json:"value,omitempty"`
	// 最后一次失败的诊断信息
	Diagnostics []string `json:"diagnostics,omitempty"`
	// 每次尝试的摘要
	History []AttemptSummary `json:"history,omitempty"`
	// 总耗时（毫秒）
	DurationMS int64 `json:"duration_ms" example:"1840"`
}

// AttemptSummary 单次尝试的摘要，不包含后端原始文本
type AttemptSummary struct {
	Attempt    int      `json:"attempt"`
	Result     string   `json:"result"`
	Repair     bool     `json:"repair"`
	Violations []string `json:"violations,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// NewArtifactResponse 把 Outcome 转换为对外结构
func NewArtifactResponse(out *generation.Outcome) ArtifactResponse {
	resp := ArtifactResponse{
		ID:         out.ID,
		Status:     string(out.Status),
		Attempts:   out.Attempts,
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.Succeeded() {
		resp.Value = out.Value
	} else {
		resp.Diagnostics = out.Diagnostics()
	}
	for _, rec := range out.History {
		summary := AttemptSummary{
			Attempt:    rec.Attempt,
			Result:     string(rec.Result),
			Repair:     rec.Repair,
			DurationMS: rec.Duration.Milliseconds(),
		}
		for _, v := range rec.Violations {
			summary.Violations = append(summary.Violations, v.Describe())
		}
		resp.History = append(resp.History, summary)
	}
	return resp
}

// =============================================================================
// 健康检查
// =============================================================================

// VersionInfo 版本信息
type VersionInfo struct {
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	StartedAt time.Time `json:"started_at"`
}
