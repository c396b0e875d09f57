package interfaces

import (
	"errors"
	"net/http"

	"coupon-core/internal/pkg/httpx"
	balancedomain "coupon-core/internal/service/balance/domain"
	coupondomain "coupon-core/internal/service/coupon/domain"
	"coupon-core/internal/service/order/application"
	"coupon-core/internal/service/order/domain"
	productdomain "coupon-core/internal/service/product/domain"
)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.PaymentService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.PaymentService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/orders", h.handlePlace)
	mux.HandleFunc("/orders/pay", h.handlePay)
	mux.HandleFunc("/orders/cancel", h.handleCancel)
}

func (h *OrderHandler) handlePlace(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.PlaceOrderRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	order, err := h.service.PlaceOrder(ctx, &req)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, application.ToOrderResponse(order))
}

func (h *OrderHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.OrderActionRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	order, err := h.service.Pay(ctx, req.OrderID, req.UserID)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.OrderActionRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	order, err := h.service.CancelOrder(ctx, req.OrderID, req.UserID)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

// statusFor 根据错误类型返回不同的 HTTP 状态码
func statusFor(err error) int {
	if status, ok := httpx.LockStatus(err); ok {
		return status
	}
	switch {
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, productdomain.ErrInvalidQuantity),
		errors.Is(err, balancedomain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, productdomain.ErrProductNotFound),
		errors.Is(err, coupondomain.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOrderAlreadyProcessed),
		errors.Is(err, productdomain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, coupondomain.ErrCouponExpired):
		return http.StatusGone
	case errors.Is(err, balancedomain.ErrInsufficientBalance),
		errors.Is(err, balancedomain.ErrBalanceNotFound),
		errors.Is(err, productdomain.ErrInsufficientStock),
		errors.Is(err, coupondomain.ErrCouponNotUsable),
		errors.Is(err, coupondomain.ErrConditionNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
