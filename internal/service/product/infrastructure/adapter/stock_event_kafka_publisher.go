package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/mq"
	"coupon-core/internal/service/product/domain"
)

// StockChangedTopic 是库存变动事件的 Kafka topic
const StockChangedTopic = "product-stock-changed"

// StockEventKafkaPublisher 实现了 port.StockEventPublisher 接口。
// 以商品 ID 作为消息 key，同一商品的事件落在同一分区，保持顺序。
type StockEventKafkaPublisher struct {
	writer mq.MessageWriter
}

// NewStockEventKafkaPublisher 创建一个新的库存事件生产者适配器
func NewStockEventKafkaPublisher(writer mq.MessageWriter) *StockEventKafkaPublisher {
	return &StockEventKafkaPublisher{writer: writer}
}

// Publish 发送库存变动事件，追踪上下文由 mq 注入消息头
func (a *StockEventKafkaPublisher) Publish(ctx context.Context, events ...domain.StockChanged) error {
	for _, evt := range events {
		value, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to marshal stock changed event: %w", err)
		}
		if err := mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(evt.ProductID, 10)), value); err != nil {
			return fmt.Errorf("failed to publish stock changed event of product %d: %w", evt.ProductID, err)
		}
	}
	return nil
}

// LogPublisher 在没有配置 Kafka 时使用，只记录日志
type LogPublisher struct{}

// Publish 实现了 port.StockEventPublisher 接口
func (LogPublisher) Publish(ctx context.Context, events ...domain.StockChanged) error {
	for _, evt := range events {
		logger.Ctx(ctx).Debug().Int64("product_id", evt.ProductID).Int64("delta", evt.Delta).Str("reason", string(evt.Reason)).Msg("stock changed")
	}
	return nil
}
