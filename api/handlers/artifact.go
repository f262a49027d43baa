package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/strictgen/api"
	"github.com/BaSui01/strictgen/generation"
	"github.com/BaSui01/strictgen/internal/idempotency"
	"github.com/BaSui01/strictgen/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🍸 生成 Handler
// =============================================================================

// Producer 产出结构化对象，*generation.Engine 满足该接口
type Producer interface {
	ProduceArtifact(ctx context.Context, vibe string) *generation.Outcome
}

// ArtifactHandler 处理 /v1/artifacts
type ArtifactHandler struct {
	producer     Producer
	timeout      time.Duration
	maxBodyBytes int64
	maxVibeRunes int
	replay       idempotency.Store
	replayTTL    time.Duration
	logger       *zap.Logger
}

// 幂等相关请求/响应头
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// ArtifactOption 配置 ArtifactHandler
type ArtifactOption func(*ArtifactHandler)

// WithGenerateTimeout 设置单个请求的生成截止时间
func WithGenerateTimeout(d time.Duration) ArtifactOption {
	return func(h *ArtifactHandler) { h.timeout = d }
}

// WithMaxBodyBytes 设置请求体上限
func WithMaxBodyBytes(n int64) ArtifactOption {
	return func(h *ArtifactHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithIdempotency 启用 Idempotency-Key 重放：成功的结果按 ttl 缓存
func WithIdempotency(store idempotency.Store, ttl time.Duration) ArtifactOption {
	return func(h *ArtifactHandler) {
		h.replay = store
		h.replayTTL = ttl
	}
}

// NewArtifactHandler 创建生成处理器
func NewArtifactHandler(producer Producer, logger *zap.Logger, opts ...ArtifactOption) *ArtifactHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ArtifactHandler{
		producer:     producer,
		timeout:      2 * time.Minute,
		maxBodyBytes: DefaultMaxBodyBytes,
		maxVibeRunes: 2000,
		logger:       logger.With(zap.String("component", "artifact_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleCreate 处理 POST /v1/artifacts
// @Summary 生成结构化对象
// @Description 根据自由文本描述生成并校验结构化对象，失败时返回尝试次数与诊断信息
// @Tags 生成
// @Accept json
// @Produce json
// @Param request body api.ArtifactRequest true "生成请求"
// @Param Idempotency-Key header string false "相同键与相同描述的重试直接返回首次成功的结果"
// @Success 200 {object} Response "生成成功"
// @Failure 400 {object} Response "请求无效"
// @Failure 422 {object} Response "尝试预算耗尽"
// @Failure 502 {object} Response "后端错误"
// @Failure 504 {object} Response "超时"
// @Router /v1/artifacts [post]
func (h *ArtifactHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ArtifactRequest
	if err := DecodeJSONBodyLimit(w, r, &req, h.maxBodyBytes, h.logger); err != nil {
		return
	}

	vibe := strings.TrimSpace(req.Vibe)
	if vibe == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "vibe is required"), h.logger)
		return
	}
	if n := len([]rune(vibe)); n > h.maxVibeRunes {
		WriteError(w, types.Errorf(types.ErrInvalidRequest,
			"vibe is too long: %d characters, limit %d", n, h.maxVibeRunes), h.logger)
		return
	}

	replayKey, ok := h.replayKey(w, r, vibe)
	if !ok {
		return
	}
	if replayKey != "" {
		if cached, hit := h.lookup(r.Context(), replayKey); hit {
			w.Header().Set(HeaderReplayed, "true")
			WriteSuccess(w, cached)
			return
		}
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out := h.producer.ProduceArtifact(ctx, vibe)
	resp := api.NewArtifactResponse(out)

	if out.Succeeded() {
		if replayKey != "" {
			h.remember(r.Context(), replayKey, resp)
		}
		WriteSuccess(w, resp)
		return
	}

	err := out.Err
	if err == nil {
		err = types.NewError(types.ErrInternalError, "generation ended without a result")
	}
	// 后端 4xx 是服务端配置问题，不应透传给调用方
	if err.Code == types.ErrBackendRequest && err.HTTPStatus < http.StatusInternalServerError {
		err = types.NewError(err.Code, err.Message).
			WithCause(err.Cause).
			WithRetryable(err.Retryable).
			WithHTTPStatus(http.StatusBadGateway)
	}
	WriteErrorWithData(w, err, resp, h.logger)
}

// replayKey 解析 Idempotency-Key；未启用或未提供时返回空串
func (h *ArtifactHandler) replayKey(w http.ResponseWriter, r *http.Request, vibe string) (string, bool) {
	clientKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if h.replay == nil || clientKey == "" {
		return "", true
	}
	if len(clientKey) > maxIdempotencyKeyLen {
		WriteError(w, types.Errorf(types.ErrInvalidRequest,
			"%s header is too long: limit %d bytes", HeaderIdempotencyKey, maxIdempotencyKeyLen), h.logger)
		return "", false
	}
	key, err := idempotency.Key(clientKey, vibe)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()), h.logger)
		return "", false
	}
	return key, true
}

// lookup 读取缓存；存储故障时降级为正常生成
func (h *ArtifactHandler) lookup(ctx context.Context, key string) (api.ArtifactResponse, bool) {
	cached, ok, err := idempotency.GetTyped[api.ArtifactResponse](ctx, h.replay, key)
	if err != nil {
		h.logger.Warn("idempotency lookup failed", zap.Error(err))
		return api.ArtifactResponse{}, false
	}
	return cached, ok
}

func (h *ArtifactHandler) remember(ctx context.Context, key string, resp api.ArtifactResponse) {
	if err := h.replay.Set(context.WithoutCancel(ctx), key, resp, h.replayTTL); err != nil {
		h.logger.Warn("idempotency store failed", zap.Error(err))
	}
}
