package port

import (
	"context"

	"coupon-core/internal/service/product/domain"
)

// StockEventPublisher 是库存变动事件的出站端口
type StockEventPublisher interface {
	Publish(ctx context.Context, events ...domain.StockChanged) error
}
