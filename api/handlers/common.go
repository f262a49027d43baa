package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/BaSui01/strictgen/types"
	"go.uber.org/zap"
)

// HeaderRequestID 请求 ID 响应头，由路由层中间件写入，信封里回显同一个值
const HeaderRequestID = "X-Request-ID"

// DefaultMaxBodyBytes 请求体默认上限
const DefaultMaxBodyBytes int64 = 1 << 20

// =============================================================================
// 📦 响应信封
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"-"`
}

func envelope(w http.ResponseWriter, data any, info *ErrorInfo) Response {
	return Response{
		Success:   info == nil,
		Data:      data,
		Error:     info,
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get(HeaderRequestID),
	}
}

// WriteJSON 写入任意 JSON 响应。响应头已发出，编码失败时无法再补救。
func WriteJSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入 200 成功信封
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, envelope(w, data, nil))
}

// WriteError 写入错误信封
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	WriteErrorWithData(w, err, nil, logger)
}

// WriteErrorWithData 写入错误信封并附带数据（例如失败的生成结果摘要）。
// 5xx 记 Error，其余记 Warn。
func WriteErrorWithData(w http.ResponseWriter, err *types.Error, data any, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = statusForCode(err.Code)
	}

	if logger != nil {
		log := logger.Warn
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("API error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.String("request_id", w.Header().Get(HeaderRequestID)),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, envelope(w, data, &ErrorInfo{
		Code:       string(err.Code),
		Message:    err.Message,
		Retryable:  err.Retryable,
		HTTPStatus: status,
	}))
}

// WriteErrorMessage 写入只有错误码和消息的错误信封
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// codeStatus 错误码到 HTTP 状态码；未列出的错误码为 500
var codeStatus = map[types.ErrorCode]int{
	types.ErrInvalidRequest:      http.StatusBadRequest,
	types.ErrValidationExhausted: http.StatusUnprocessableEntity,
	types.ErrTimeout:             http.StatusGatewayTimeout,
	types.ErrBackendUnavailable:  http.StatusServiceUnavailable,
	types.ErrBackendRequest:      http.StatusBadGateway,
}

func statusForCode(code types.ErrorCode) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// =============================================================================
// 🛡️ 请求解码
// =============================================================================

// DecodeJSONBody 以 DefaultMaxBodyBytes 为上限解码请求体
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	return DecodeJSONBodyLimit(w, r, dst, DefaultMaxBodyBytes, logger)
}

// DecodeJSONBodyLimit 严格解码 JSON 请求体：拒绝未知字段与尾随内容，超过 limit 返回 413。
// 失败时已写出错误响应，调用方直接返回即可。
func DecodeJSONBodyLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		apiErr := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, apiErr, logger)
		return apiErr
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err == nil {
		return nil
	}

	apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err).
		WithHTTPStatus(http.StatusBadRequest)
	if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
		apiErr = types.NewError(types.ErrInvalidRequest, "request body too large").WithCause(err).
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	}
	WriteError(w, apiErr, logger)
	return apiErr
}

// ValidateContentType 要求 application/json，参数与大小写不敏感
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/json" {
		return true
	}
	WriteError(w, types.NewError(types.ErrInvalidRequest, "Content-Type must be application/json").
		WithHTTPStatus(http.StatusUnsupportedMediaType), logger)
	return false
}

// =============================================================================
// 📊 状态码捕获
// =============================================================================

// ResponseWriter 记录首个状态码，供日志与指标中间件读取
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.Written {
		return
	}
	rw.StatusCode = code
	rw.Written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap 让 http.ResponseController 能访问底层 writer
func (rw *ResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
