package generation

import (
	"time"

	"github.com/BaSui01/strictgen/contract"
	"github.com/BaSui01/strictgen/types"
)

// AttemptResult 单次尝试的结果分类
type AttemptResult string

const (
	ResultValid          AttemptResult = "valid"
	ResultInvalid        AttemptResult = "invalid"
	ResultTransientError AttemptResult = "transient_error"
	ResultPermanentError AttemptResult = "permanent_error"
	ResultTimeout        AttemptResult = "timeout"
)

// AttemptRecord 记录一次尝试，用于审计与诊断
type AttemptRecord struct {
	Attempt     int                  `json:"attempt"`
	Result      AttemptResult        `json:"result"`
	Repair      bool                 `json:"repair"`
	RawResponse string               `json:"raw_response,omitempty"`
	Violations  []contract.Violation `json:"violations,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	Duration    time.Duration        `json:"duration"`
}

// Outcome 一次生成的最终结果。Err 只会是 *types.Error，不会泄漏后端原始错误。
type Outcome struct {
	ID       string                     `json:"id"`
	Status   Status                     `json:"status"`
	Value    map[string]any             `json:"value,omitempty"`
	Attempts int                        `json:"attempts"`
	Report   *contract.ValidationReport `json:"report,omitempty"`
	History  []AttemptRecord            `json:"history,omitempty"`
	Err      *types.Error               `json:"error,omitempty"`
	Duration time.Duration              `json:"duration"`
}

// Succeeded 报告生成是否得到合法值
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Status == StatusSucceeded
}

// Diagnostics 返回失败原因。Failed 时错误信息排在最前，其后才是最后一次校验的违规，
// 避免永久错误被上一轮的字段违规掩盖。
func (o *Outcome) Diagnostics() []string {
	if o == nil {
		return nil
	}
	var out []string
	if o.Status == StatusFailed && o.Err != nil {
		out = append(out, o.Err.Message)
	}
	if o.Report != nil && !o.Report.Succeeded {
		return append(out, o.Report.Descriptions()...)
	}
	if len(out) == 0 && o.Err != nil {
		out = append(out, o.Err.Message)
	}
	return out
}
