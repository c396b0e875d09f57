package adapter

import (
	"context"

	"coupon-core/internal/service/balance/application"
)

// BalanceAdapter 实现了 port.BalanceService 接口，进程内调用余额服务。
type BalanceAdapter struct {
	svc *application.BalanceService
}

// NewBalanceAdapter 创建一个新的余额服务适配器。
func NewBalanceAdapter(svc *application.BalanceService) *BalanceAdapter {
	return &BalanceAdapter{svc: svc}
}

// Use 扣减余额
func (a *BalanceAdapter) Use(ctx context.Context, userID, amount int64) error {
	_, err := a.svc.Use(ctx, userID, amount)
	return err
}

// Refund 退还余额
func (a *BalanceAdapter) Refund(ctx context.Context, userID, amount int64) error {
	_, err := a.svc.Refund(ctx, userID, amount)
	return err
}
