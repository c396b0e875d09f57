package interfaces

import (
	"errors"
	"net/http"

	"coupon-core/internal/pkg/httpx"
	"coupon-core/internal/service/coupon/application"
	"coupon-core/internal/service/coupon/domain"
)

// CouponHandler 封装了券服务的 HTTP 处理器
type CouponHandler struct {
	service *application.CouponService
}

// NewCouponHandler 创建一个新的 HTTP 处理器实例
func NewCouponHandler(service *application.CouponService) *CouponHandler {
	return &CouponHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/coupons", h.handleCreate)
	mux.HandleFunc("/coupons/issue", h.handleIssue)
	mux.HandleFunc("/coupons/quote", h.handleQuote)
}

func (h *CouponHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.CreateCouponRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	coupon, err := h.service.CreateCoupon(ctx, req.ToCoupon())
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{"id": coupon.ID})
}

func (h *CouponHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.IssueCouponRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	uc, err := h.service.IssueCoupon(ctx, req.UserID, req.CouponID)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.ToUserCouponResponse(uc))
}

func (h *CouponHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req application.QuoteRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	discount, err := h.service.Quote(ctx, req.UserID, req.CouponID, req.OrderAmount)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.QuoteResponse{
		DiscountAmount: discount,
		FinalAmount:    req.OrderAmount - discount,
	})
}

// statusFor 根据错误类型返回不同的 HTTP 状态码
func statusFor(err error) int {
	if status, ok := httpx.LockStatus(err); ok {
		return status
	}
	switch {
	case errors.Is(err, application.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidCoupon):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateIssuance):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCouponSoldOut),
		errors.Is(err, domain.ErrCouponExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrCouponNotUsable),
		errors.Is(err, domain.ErrConditionNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
