package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
	"coupon-core/internal/service/order/application/saga"
	"coupon-core/internal/service/order/domain"
	"coupon-core/internal/service/order/domain/port"
)

// PaymentService 只关注订单的流程编排：下单、支付、取消
type PaymentService struct {
	orderRepo domain.OrderRepository
	inventory port.InventoryService
	coupons   port.CouponService
	saga      *saga.PaymentSaga
	guard     *lock.Guard
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPaymentService 创建订单支付服务
func NewPaymentService(orderRepo domain.OrderRepository, deps saga.Deps, guard *lock.Guard, tracer trace.Tracer) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		inventory: deps.Inventory,
		coupons:   deps.Coupon,
		saga:      saga.NewPaymentSaga(deps, tracer),
		guard:     guard,
		tracer:    tracer,
		now:       time.Now,
	}
}

// PlaceOrder 按当前价格生成待支付订单，优惠金额在下单时试算并锁定
func (s *PaymentService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()

	items := make([]domain.OrderItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		price, err := s.inventory.UnitPrice(ctx, line.ProductID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		items = append(items, domain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: price})
		total += price * line.Quantity
	}

	var discount int64
	if req.CouponID != nil {
		d, err := s.coupons.Quote(ctx, req.UserID, *req.CouponID, total)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		discount = d
	}

	order, err := domain.NewOrder(req.UserID, items, req.CouponID, discount, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.Int64("order.final_amount", order.FinalAmount))
	logger.Ctx(ctx).Info().Int64("order_id", order.ID).Int64("user_id", order.UserID).Int64("final_amount", order.FinalAmount).Msg("order placed")
	return order, nil
}

// Get 查询订单
func (s *PaymentService) Get(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// Pay 在订单支付锁内执行支付 Saga。
// 锁的获取顺序固定为 订单 -> 余额 -> 商品 (按订单行顺序) -> 用户券。
func (s *PaymentService) Pay(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.Pay")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int64("user.id", userID))

	order, err := lock.With(ctx, s.guard, lock.OrderPaymentKey(orderID), func(ctx context.Context) (*domain.Order, error) {
		order, err := s.Get(ctx, orderID, userID)
		if err != nil {
			return nil, err
		}
		if !order.IsPending() {
			return nil, domain.ErrOrderAlreadyProcessed
		}

		err = s.saga.Execute(ctx, order, func(ctx context.Context) error {
			if err := order.Complete(s.now()); err != nil {
				return err
			}
			return s.orderRepo.UpdateStatus(ctx, order)
		})
		if err != nil {
			return nil, err
		}
		return order, nil
	})
	metrics.PaymentTotal.WithLabelValues(paymentResult(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("order_id", orderID).Int64("amount", order.FinalAmount).Msg("order paid")
	return order, nil
}

func paymentResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrOrderAlreadyProcessed):
		return "rejected"
	case errors.Is(err, lock.ErrLockAcquisitionFailed),
		errors.Is(err, lock.ErrLockInterrupted):
		return "contended"
	default:
		return "failed"
	}
}

// CancelOrder 取消待支付的订单，与 Pay 互斥
func (s *PaymentService) CancelOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()

	order, err := lock.With(ctx, s.guard, lock.OrderPaymentKey(orderID), func(ctx context.Context) (*domain.Order, error) {
		order, err := s.Get(ctx, orderID, userID)
		if err != nil {
			return nil, err
		}
		if err := order.Cancel(s.now()); err != nil {
			return nil, err
		}
		if err := s.orderRepo.UpdateStatus(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("order_id", orderID).Msg("order cancelled")
	return order, nil
}
