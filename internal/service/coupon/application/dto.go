package application

import (
	"time"

	"coupon-core/internal/service/coupon/domain"
)

// IssueCouponRequest 是领券的请求体
type IssueCouponRequest struct {
	UserID   int64 `json:"user_id"`
	CouponID int64 `json:"coupon_id"`
}

// UserCouponResponse 是用户券的响应体
type UserCouponResponse struct {
	ID       int64      `json:"id"`
	UserID   int64      `json:"user_id"`
	CouponID int64      `json:"coupon_id"`
	Status   string     `json:"status"`
	IssuedAt time.Time  `json:"issued_at"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}

// ToUserCouponResponse 从领域对象转换为响应
func ToUserCouponResponse(uc *domain.UserCoupon) *UserCouponResponse {
	return &UserCouponResponse{
		ID:       uc.ID,
		UserID:   uc.UserID,
		CouponID: uc.CouponID,
		Status:   string(uc.Status),
		IssuedAt: uc.IssuedAt,
		UsedAt:   uc.UsedAt,
	}
}

// CreateCouponRequest 是创建券定义的请求体
type CreateCouponRequest struct {
	Name          string    `json:"name"`
	TotalQuantity int64     `json:"total_quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	Condition     string    `json:"condition,omitempty"`
}

// ToCoupon 转换为领域对象
func (r *CreateCouponRequest) ToCoupon() *domain.Coupon {
	return &domain.Coupon{
		Name:          r.Name,
		TotalQuantity: r.TotalQuantity,
		ExpiresAt:     r.ExpiresAt,
		Discount: domain.Discount{
			Type:  domain.DiscountType(r.DiscountType),
			Value: r.DiscountValue,
		},
		Condition: r.Condition,
	}
}

// QuoteRequest 是试算优惠的请求体
type QuoteRequest struct {
	UserID      int64 `json:"user_id"`
	CouponID    int64 `json:"coupon_id"`
	OrderAmount int64 `json:"order_amount"`
}

// QuoteResponse 是试算优惠的响应体
type QuoteResponse struct {
	DiscountAmount int64 `json:"discount_amount"`
	FinalAmount    int64 `json:"final_amount"`
}
