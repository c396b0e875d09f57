package port

import "context"

// BalanceService 是余额的出站端口
type BalanceService interface {
	Use(ctx context.Context, userID, amount int64) error
	// Refund 是 Use 的补偿操作
	Refund(ctx context.Context, userID, amount int64) error
}

// InventoryService 是库存的出站端口
type InventoryService interface {
	UnitPrice(ctx context.Context, productID int64) (int64, error)
	DeductStock(ctx context.Context, productID, qty int64) error
	// RestoreStock 是 DeductStock 的补偿操作
	RestoreStock(ctx context.Context, productID, qty int64) error
}

// CouponService 是用户券的出站端口
type CouponService interface {
	Quote(ctx context.Context, userID, couponID, amount int64) (int64, error)
	Use(ctx context.Context, userID, couponID int64) error
	// Restore 是 Use 的补偿操作
	Restore(ctx context.Context, userID, couponID int64) error
}
