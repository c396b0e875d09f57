package saga

import (
	"context"
	"fmt"

	"coupon-core/internal/service/order/domain/port"
)

// Compensation 是一个待执行的补偿动作
type Compensation struct {
	Step Step
	Name string
	Run  func(ctx context.Context) error
}

// Compensations 把执行记录倒序折叠为补偿动作列表，本身不执行任何动作
func Compensations(log Log, deps Deps) []Compensation {
	steps := log.Steps()
	out := make([]Compensation, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		out = append(out, compensationFor(steps[i], deps))
	}
	return out
}

func compensationFor(s Step, deps Deps) Compensation {
	switch s.Kind {
	case StepBalanceDeducted:
		return Compensation{Step: s, Name: "refund_balance", Run: func(ctx context.Context) error {
			return deps.Balance.Refund(ctx, s.UserID, s.Amount)
		}}
	case StepStockDeducted:
		return Compensation{Step: s, Name: "restore_stock", Run: func(ctx context.Context) error {
			return deps.Inventory.RestoreStock(ctx, s.ProductID, s.Quantity)
		}}
	case StepCouponRedeemed:
		return Compensation{Step: s, Name: "restore_coupon", Run: func(ctx context.Context) error {
			return deps.Coupon.Restore(ctx, s.UserID, s.CouponID)
		}}
	default:
		return Compensation{Step: s, Name: "unknown", Run: func(context.Context) error {
			return fmt.Errorf("saga: no compensation for %s", s.Kind)
		}}
	}
}

// Deps 是支付流程依赖的出站端口
type Deps struct {
	Balance   port.BalanceService
	Inventory port.InventoryService
	Coupon    port.CouponService
}
