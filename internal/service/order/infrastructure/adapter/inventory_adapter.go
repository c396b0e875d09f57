package adapter

import (
	"context"

	"coupon-core/internal/service/product/application"
)

// InventoryAdapter 实现了 port.InventoryService 接口。
type InventoryAdapter struct {
	svc *application.ProductService
}

// NewInventoryAdapter 创建一个新的库存服务适配器。
func NewInventoryAdapter(svc *application.ProductService) *InventoryAdapter {
	return &InventoryAdapter{svc: svc}
}

// UnitPrice 返回商品当前单价
func (a *InventoryAdapter) UnitPrice(ctx context.Context, productID int64) (int64, error) {
	p, err := a.svc.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Price, nil
}

// DeductStock 扣减单个商品的库存
func (a *InventoryAdapter) DeductStock(ctx context.Context, productID, qty int64) error {
	return a.svc.DeductStock(ctx, productID, qty)
}

// RestoreStock 是 DeductStock 的补偿逻辑
func (a *InventoryAdapter) RestoreStock(ctx context.Context, productID, qty int64) error {
	return a.svc.RestoreStock(ctx, productID, qty)
}
