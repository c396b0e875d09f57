package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
	"coupon-core/internal/service/product/domain"
	"coupon-core/internal/service/product/domain/port"
)

// DefaultBatchRetries 是批量扣减遇到版本冲突时的最大重试次数
const DefaultBatchRetries = 3

// ProductService 管理商品库存。
// 单个商品的扣减与归还在 PRODUCT_STOCK 锁内完成；批量扣减只锁订单，依赖版本号做乐观并发控制。
type ProductService struct {
	repo         domain.Repository
	guard        *lock.Guard
	publisher    port.StockEventPublisher
	tracer       trace.Tracer
	batchRetries int
	now          func() time.Time
}

// NewProductService 创建一个新的商品服务实例
func NewProductService(repo domain.Repository, guard *lock.Guard, publisher port.StockEventPublisher, tracer trace.Tracer) *ProductService {
	return &ProductService{
		repo:         repo,
		guard:        guard,
		publisher:    publisher,
		tracer:       tracer,
		batchRetries: DefaultBatchRetries,
		now:          time.Now,
	}
}

// Get 查询商品
func (s *ProductService) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	return s.repo.FindByID(ctx, productID)
}

// Create 新建商品
func (s *ProductService) Create(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if p.Stock < 0 || p.Price < 0 {
		return nil, fmt.Errorf("%w: stock and price must not be negative", domain.ErrInvalidQuantity)
	}
	p.Version = 0
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeductStock 扣减单个商品库存，库存不足返回 ErrInsufficientStock
func (s *ProductService) DeductStock(ctx context.Context, productID, qty int64) error {
	return s.changeStock(ctx, "service.DeductStock", productID, qty, domain.ReasonDeduct, (*domain.Product).Deduct)
}

// RestoreStock 是 DeductStock 的补偿操作
func (s *ProductService) RestoreStock(ctx context.Context, productID, qty int64) error {
	return s.changeStock(ctx, "service.RestoreStock (Compensation)", productID, qty, domain.ReasonRestore, (*domain.Product).Restore)
}

func (s *ProductService) changeStock(ctx context.Context, spanName string, productID, qty int64, reason domain.StockChangeReason, change func(p *domain.Product, qty int64) error) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", qty))

	err := s.guard.WithLock(ctx, lock.ProductStockKey(productID), func(ctx context.Context) error {
		p, err := s.repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := change(p, qty); err != nil {
			return err
		}
		return s.repo.UpdateStock(ctx, p)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	delta := qty
	if reason == domain.ReasonDeduct {
		delta = -qty
	}
	s.publish(ctx, domain.StockChanged{ProductID: productID, Delta: delta, Reason: reason, OccurredAt: s.now()})
	return nil
}

// DeductStocks 在一个事务中扣减整笔订单的库存，要么全部成功要么全部不变。
// 版本冲突时整体重试，重试用尽返回 ErrConcurrentModification。
func (s *ProductService) DeductStocks(ctx context.Context, orderID int64, lines []domain.StockLine) error {
	ctx, span := s.tracer.Start(ctx, "service.DeductStocks")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int("lines", len(lines)))

	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	err = s.guard.WithLock(ctx, lock.ProductBatchKey(orderID), func(ctx context.Context) error {
		for attempt := 0; attempt <= s.batchRetries; attempt++ {
			err := s.repo.WithinTx(ctx, func(repo domain.Repository) error {
				for _, line := range merged {
					p, err := repo.FindByID(ctx, line.ProductID)
					if err != nil {
						return err
					}
					if err := p.Deduct(line.Quantity); err != nil {
						return fmt.Errorf("product %d: %w", line.ProductID, err)
					}
					if err := repo.UpdateStock(ctx, p); err != nil {
						return err
					}
				}
				return nil
			})
			if !errors.Is(err, domain.ErrConcurrentModification) {
				return err
			}
			metrics.ProductStockConflictTotal.Inc()
			logger.Ctx(ctx).Warn().Int64("order_id", orderID).Int("attempt", attempt+1).Msg("stock version conflict, retrying batch deduct")
		}
		return domain.ErrConcurrentModification
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	now := s.now()
	events := make([]domain.StockChanged, 0, len(merged))
	for _, line := range merged {
		events = append(events, domain.StockChanged{ProductID: line.ProductID, Delta: -line.Quantity, Reason: domain.ReasonDeduct, OrderID: orderID, OccurredAt: now})
	}
	s.publish(ctx, events...)
	return nil
}

// mergeLines 合并同一商品的多行，并按商品 ID 排序
func mergeLines(lines []domain.StockLine) ([]domain.StockLine, error) {
	byProduct := make(map[int64]int64, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		byProduct[l.ProductID] += l.Quantity
	}
	merged := make([]domain.StockLine, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, domain.StockLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// publish 尽力发送事件，失败只记录日志，不影响已提交的库存变动
func (s *ProductService) publish(ctx context.Context, events ...domain.StockChanged) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int("events", len(events)).Msg("failed to publish stock changed events")
	}
}
