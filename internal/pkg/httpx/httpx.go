// Package httpx 是各服务 HTTP 处理器共用的小工具
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
)

// ErrorResponse 是错误响应体
type ErrorResponse struct {
	Error string `json:"error"`
}

// Extract 从请求头中恢复上游的 trace 上下文
func Extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// DecodeJSON 解析请求体，失败时已写入 400
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		WriteError(r.Context(), w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(r.Context(), w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError 写入错误响应，5xx 记录日志
func WriteError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Int("status", status).Msg("request failed")
	}
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

// LockStatus 将锁相关的错误映射为 HTTP 状态码：竞争为 423，请求中的 ID 无法生成锁 key 为 400
func LockStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, lock.ErrKeyResolution):
		return http.StatusBadRequest, true
	case errors.Is(err, lock.ErrLockAcquisitionFailed),
		errors.Is(err, lock.ErrLockInterrupted):
		return http.StatusLocked, true
	default:
		return 0, false
	}
}
