package adapter

import (
	"context"

	"coupon-core/internal/service/coupon/application"
)

// CouponAdapter 实现了 port.CouponService 接口。
type CouponAdapter struct {
	svc *application.CouponService
}

// NewCouponAdapter 创建一个新的优惠券服务适配器。
func NewCouponAdapter(svc *application.CouponService) *CouponAdapter {
	return &CouponAdapter{svc: svc}
}

// Quote 试算优惠金额
func (a *CouponAdapter) Quote(ctx context.Context, userID, couponID, amount int64) (int64, error) {
	return a.svc.Quote(ctx, userID, couponID, amount)
}

// Use 核销用户券
func (a *CouponAdapter) Use(ctx context.Context, userID, couponID int64) error {
	return a.svc.Use(ctx, userID, couponID)
}

// Restore 是 Use 的补偿逻辑
func (a *CouponAdapter) Restore(ctx context.Context, userID, couponID int64) error {
	return a.svc.Restore(ctx, userID, couponID)
}
