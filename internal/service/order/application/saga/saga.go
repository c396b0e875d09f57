// Package saga 编排订单支付：扣余额、逐行扣库存、核销优惠券。
// 任何一步失败都按已完成步骤的相反顺序补偿，然后把原始错误交还调用方。
package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
	"coupon-core/internal/service/order/domain"
)

// compensationTimeout 限制每个补偿动作的耗时，补偿不受调用方 ctx 取消的影响
const compensationTimeout = 5 * time.Second

// Action 是一个正向步骤：基于当前记录执行动作，返回追加了成功步骤的新记录。
// 失败时返回的记录仍然包含失败前已成功的部分。
type Action func(ctx context.Context, order *domain.Order, log Log) (Log, error)

type namedAction struct {
	name string
	run  Action
}

// PaymentSaga 负责订单支付的编排与补偿
type PaymentSaga struct {
	deps    Deps
	tracer  trace.Tracer
	actions []namedAction
}

// NewPaymentSaga 创建支付 Saga，步骤顺序固定：余额 -> 库存 (按订单行顺序) -> 优惠券
func NewPaymentSaga(deps Deps, tracer trace.Tracer) *PaymentSaga {
	s := &PaymentSaga{deps: deps, tracer: tracer}
	s.actions = []namedAction{
		{name: "DeductBalance", run: s.deductBalance},
		{name: "DeductStock", run: s.deductStock},
		{name: "RedeemCoupon", run: s.redeemCoupon},
	}
	return s
}

// Execute 依次执行所有步骤，最后调用 commit 持久化结果。
// 任一步骤或 commit 失败时执行补偿，返回原始错误。
func (s *PaymentSaga) Execute(ctx context.Context, order *domain.Order, commit func(ctx context.Context) error) error {
	var log Log
	for _, action := range s.actions {
		stepCtx, span := s.tracer.Start(ctx, "saga."+action.name)
		next, err := action.run(stepCtx, order, log)
		log = next
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, action.name+" failed")
			span.End()
			s.compensate(ctx, order, log, err)
			return err
		}
		span.End()
	}

	if err := commit(ctx); err != nil {
		s.compensate(ctx, order, log, err)
		return err
	}
	return nil
}

func (s *PaymentSaga) deductBalance(ctx context.Context, order *domain.Order, log Log) (Log, error) {
	if order.FinalAmount <= 0 {
		return log, nil
	}
	if err := s.deps.Balance.Use(ctx, order.UserID, order.FinalAmount); err != nil {
		return log, err
	}
	return log.Append(Step{Kind: StepBalanceDeducted, UserID: order.UserID, Amount: order.FinalAmount}), nil
}

func (s *PaymentSaga) deductStock(ctx context.Context, order *domain.Order, log Log) (Log, error) {
	for _, item := range order.Items {
		if err := s.deps.Inventory.DeductStock(ctx, item.ProductID, item.Quantity); err != nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("failed.product_id", item.ProductID))
			return log, err
		}
		log = log.Append(Step{Kind: StepStockDeducted, ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return log, nil
}

func (s *PaymentSaga) redeemCoupon(ctx context.Context, order *domain.Order, log Log) (Log, error) {
	if order.CouponID == nil {
		return log, nil
	}
	if err := s.deps.Coupon.Use(ctx, order.UserID, *order.CouponID); err != nil {
		return log, err
	}
	return log.Append(Step{Kind: StepCouponRedeemed, UserID: order.UserID, CouponID: *order.CouponID}), nil
}

// compensate 依次执行补偿。补偿失败记录日志与指标后继续，不会替换原始错误。
func (s *PaymentSaga) compensate(ctx context.Context, order *domain.Order, log Log, cause error) {
	compCtx := context.WithoutCancel(ctx)
	compCtx, span := s.tracer.Start(compCtx, "saga.Compensate")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.Int("steps", log.Len()))

	logger.Ctx(ctx).Warn().Err(cause).Int64("order_id", order.ID).Int("steps", log.Len()).Msg("payment failed, compensating")

	for _, c := range Compensations(log, s.deps) {
		runCtx, cancel := context.WithTimeout(compCtx, compensationTimeout)
		err := c.Run(runCtx)
		cancel()
		if err != nil {
			metrics.PaymentCompensationTotal.WithLabelValues(c.Name, "failed").Inc()
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Int64("order_id", order.ID).
				Str("compensation", c.Name).
				Interface("step", c.Step).
				Msg("compensation failed, manual intervention required")
			continue
		}
		metrics.PaymentCompensationTotal.WithLabelValues(c.Name, "succeeded").Inc()
	}
}
