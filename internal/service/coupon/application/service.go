package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
	"coupon-core/internal/service/coupon/domain"
	"coupon-core/internal/service/coupon/domain/port"
)

// ErrInvalidRequest 请求参数不合法
var ErrInvalidRequest = errors.New("invalid request")

// revokeTimeout 限制写库失败后撤销快速通道名额的耗时
const revokeTimeout = 3 * time.Second

// CouponService 定义了券服务提供的所有业务用例
type CouponService struct {
	coupons     domain.CouponRepository
	userCoupons domain.UserCouponRepository
	ledger      port.Ledger
	rules       domain.RuleEngine
	guard       *lock.Guard
	tracer      trace.Tracer
	now         func() time.Time
}

// NewCouponService 创建一个新的券服务实例
func NewCouponService(coupons domain.CouponRepository, userCoupons domain.UserCouponRepository, ledger port.Ledger, rules domain.RuleEngine, guard *lock.Guard, tracer trace.Tracer) *CouponService {
	return &CouponService{
		coupons:     coupons,
		userCoupons: userCoupons,
		ledger:      ledger,
		rules:       rules,
		guard:       guard,
		tracer:      tracer,
		now:         time.Now,
	}
}

// CreateCoupon 保存券定义并初始化快速通道库存
func (s *CouponService) CreateCoupon(ctx context.Context, coupon *domain.Coupon) (*domain.Coupon, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateCoupon")
	defer span.End()

	// 已存在的券不能通过创建接口重置，否则已发数量和快速通道库存会被清零
	if coupon.ID != 0 {
		return nil, fmt.Errorf("%w: id must not be set", domain.ErrInvalidCoupon)
	}
	coupon.IssuedQuantity = 0
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	if err := s.rules.Check(coupon.Condition); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCoupon, err)
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.ledger.Prepare(ctx, coupon.ID, coupon.TotalQuantity); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("coupon.id", coupon.ID))
	logger.Ctx(ctx).Info().Int64("coupon_id", coupon.ID).Int64("total", coupon.TotalQuantity).Msg("coupon created")
	return coupon, nil
}

// IssueCoupon 是领券的核心业务逻辑。
//
// 准入完全由 Ledger 的原子脚本决定；脚本返回成功后再写库。
// 写库失败时撤销快速通道中的名额，避免库存泄漏。
func (s *CouponService) IssueCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "service.IssueCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("coupon.id", couponID))

	uc, err := s.issue(ctx, userID, couponID)
	metrics.CouponIssueTotal.WithLabelValues(issueOutcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue coupon failed")
		return nil, err
	}
	span.AddEvent("coupon issued")
	return uc, nil
}

func (s *CouponService) issue(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	if userID <= 0 || couponID <= 0 {
		return nil, fmt.Errorf("%w: user_id and coupon_id must be positive", ErrInvalidRequest)
	}

	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if coupon.IsExpired(now) {
		return nil, domain.ErrCouponExpired
	}

	result, err := s.ledger.TryIssue(ctx, couponID, userID)
	if err != nil {
		return nil, err
	}
	switch result {
	case port.LedgerAlreadyIssued:
		return nil, domain.ErrDuplicateIssuance
	case port.LedgerSoldOut:
		return nil, domain.ErrCouponSoldOut
	}

	uc := domain.NewUserCoupon(userID, couponID, now)
	if err := s.coupons.RecordIssuance(ctx, uc); err != nil {
		s.revoke(ctx, couponID, userID, err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("user_id", userID).Int64("coupon_id", couponID).Msg("coupon issued")
	return uc, nil
}

// revoke 撤销快速通道中已占用的名额，失败只记录日志
func (s *CouponService) revoke(ctx context.Context, couponID, userID int64, cause error) {
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
	defer cancel()

	revoked, err := s.ledger.Revoke(revokeCtx, couponID, userID)
	log := logger.Ctx(ctx).With().Int64("user_id", userID).Int64("coupon_id", couponID).Logger()
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("failed to revoke ledger slot after durable write failure")
		return
	}
	log.Warn().Err(cause).Bool("revoked", revoked).Msg("durable issuance failed, ledger slot revoked")
}

func issueOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrDuplicateIssuance):
		return "already_issued"
	case errors.Is(err, domain.ErrCouponSoldOut):
		return "sold_out"
	case errors.Is(err, domain.ErrCouponExpired):
		return "expired"
	case errors.Is(err, domain.ErrCouponNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Use 核销用户券，供支付流程调用
func (s *CouponService) Use(ctx context.Context, userID, couponID int64) error {
	ctx, span := s.tracer.Start(ctx, "service.UseCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("coupon.id", couponID))

	err := s.guard.WithLock(ctx, lock.UserCouponKey(userID, couponID), func(ctx context.Context) error {
		uc, err := s.userCoupons.FindByUserAndCoupon(ctx, userID, couponID)
		if err != nil {
			return err
		}
		coupon, err := s.coupons.FindByID(ctx, couponID)
		if err != nil {
			return err
		}

		now := s.now()
		if uc.IsAvailable() && coupon.IsExpired(now) {
			uc.Expire()
			if err := s.userCoupons.Update(ctx, uc); err != nil {
				return err
			}
			return fmt.Errorf("%w: coupon %d expired", domain.ErrCouponNotUsable, couponID)
		}
		if err := uc.Use(now); err != nil {
			return fmt.Errorf("%w: status is %s", err, uc.Status)
		}
		return s.userCoupons.Update(ctx, uc)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Ctx(ctx).Printf("Coupon %d of user %d has been used.", couponID, userID)
	return nil
}

// Restore 是 Use 的补偿方法
func (s *CouponService) Restore(ctx context.Context, userID, couponID int64) error {
	ctx, span := s.tracer.Start(ctx, "service.RestoreCoupon (Compensation)")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("coupon.id", couponID))

	err := s.guard.WithLock(ctx, lock.UserCouponKey(userID, couponID), func(ctx context.Context) error {
		uc, err := s.userCoupons.FindByUserAndCoupon(ctx, userID, couponID)
		if err != nil {
			return err
		}
		if err := uc.Restore(); err != nil {
			return fmt.Errorf("%w: status is %s", err, uc.Status)
		}
		return s.userCoupons.Update(ctx, uc)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Ctx(ctx).Printf("Compensation: coupon %d of user %d has been rolled back to AVAILABLE.", couponID, userID)
	span.AddEvent("Coupon status rolled back to AVAILABLE")
	return nil
}

// Quote 试算 amount 使用该券后的优惠金额，会评估券的使用条件
func (s *CouponService) Quote(ctx context.Context, userID, couponID, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.QuoteCoupon")
	defer span.End()

	if amount < 0 {
		return 0, fmt.Errorf("%w: negative amount", ErrInvalidRequest)
	}
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return 0, err
	}
	if coupon.IsExpired(s.now()) {
		return 0, domain.ErrCouponExpired
	}
	uc, err := s.userCoupons.FindByUserAndCoupon(ctx, userID, couponID)
	if err != nil {
		return 0, err
	}
	if !uc.IsAvailable() {
		return 0, fmt.Errorf("%w: status is %s", domain.ErrCouponNotUsable, uc.Status)
	}

	ok, err := s.rules.Evaluate(coupon.Condition, domain.Fact{UserID: userID, CouponID: couponID, OrderAmount: amount})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !ok {
		return 0, domain.ErrConditionNotMet
	}

	discount := coupon.CalculateDiscount(amount)
	span.SetAttributes(attribute.Int64("discount", discount))
	return discount, nil
}

// WarmUp 用持久化状态重建快速通道的库存与已领用户集合
func (s *CouponService) WarmUp(ctx context.Context, couponID int64) error {
	ctx, span := s.tracer.Start(ctx, "service.WarmUpCoupon")
	defer span.End()

	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return err
	}
	holders, err := s.userCoupons.ListHolders(ctx, couponID)
	if err != nil {
		return err
	}
	remaining := coupon.TotalQuantity - int64(len(holders))
	if err := s.ledger.Seed(ctx, couponID, remaining, holders); err != nil {
		span.RecordError(err)
		return err
	}

	logger.Ctx(ctx).Info().Int64("coupon_id", couponID).Int64("remaining", remaining).Int("holders", len(holders)).Msg("coupon ledger warmed up")
	return nil
}

// ExpireOverdue 将已到期券下所有可用的用户券置为过期
func (s *CouponService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.userCoupons.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Ctx(ctx).Info().Int64("expired", n).Msg("overdue user coupons expired")
	}
	return n, nil
}
