package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 保存新订单及其订单行
	Create(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找订单聚合，包含订单行
	FindByID(ctx context.Context, id int64) (*Order, error)

	// UpdateStatus 只在库中订单仍为 PENDING 时写入状态变更，否则返回 ErrOrderAlreadyProcessed
	UpdateStatus(ctx context.Context, order *Order) error
}
