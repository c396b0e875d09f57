package interfaces

import (
	"errors"
	"net/http"

	"coupon-core/internal/pkg/httpx"
	"coupon-core/internal/service/balance/application"
	"coupon-core/internal/service/balance/domain"
)

// ChargeRequest 是充值的请求体
type ChargeRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// BalanceResponse 是余额的响应体
type BalanceResponse struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// BalanceHandler 封装了余额服务的 HTTP 处理器
type BalanceHandler struct {
	service *application.BalanceService
}

// NewBalanceHandler 创建一个新的 HTTP 处理器实例
func NewBalanceHandler(service *application.BalanceService) *BalanceHandler {
	return &BalanceHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *BalanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/balances/charge", h.handleCharge)
}

func (h *BalanceHandler) handleCharge(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req ChargeRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	b, err := h.service.Charge(ctx, req.UserID, req.Amount)
	if err != nil {
		status := http.StatusInternalServerError
		if s, ok := httpx.LockStatus(err); ok {
			status = s
		} else if errors.Is(err, domain.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		httpx.WriteError(ctx, w, status, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, BalanceResponse{UserID: b.UserID, Amount: b.Amount})
}
