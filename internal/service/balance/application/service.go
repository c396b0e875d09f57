package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/service/balance/domain"
)

// BalanceService 提供余额的充值、扣减与退款。
// 所有写操作都在 USER_BALANCE 锁内完成读-改-写。
type BalanceService struct {
	repo   domain.Repository
	guard  *lock.Guard
	tracer trace.Tracer
	now    func() time.Time
}

// NewBalanceService 创建一个新的余额服务实例
func NewBalanceService(repo domain.Repository, guard *lock.Guard, tracer trace.Tracer) *BalanceService {
	return &BalanceService{repo: repo, guard: guard, tracer: tracer, now: time.Now}
}

// Get 查询余额
func (s *BalanceService) Get(ctx context.Context, userID int64) (*domain.Balance, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// Charge 充值，账户不存在时自动开户
func (s *BalanceService) Charge(ctx context.Context, userID, amount int64) (*domain.Balance, error) {
	return s.mutate(ctx, "service.ChargeBalance", userID, amount, true, func(b *domain.Balance, now time.Time) error {
		return b.Credit(amount, now)
	})
}

// Use 扣减余额，余额不足返回 ErrInsufficientBalance
func (s *BalanceService) Use(ctx context.Context, userID, amount int64) (*domain.Balance, error) {
	return s.mutate(ctx, "service.UseBalance", userID, amount, false, func(b *domain.Balance, now time.Time) error {
		return b.Deduct(amount, now)
	})
}

// Refund 是 Use 的补偿操作
func (s *BalanceService) Refund(ctx context.Context, userID, amount int64) (*domain.Balance, error) {
	return s.mutate(ctx, "service.RefundBalance (Compensation)", userID, amount, false, func(b *domain.Balance, now time.Time) error {
		return b.Credit(amount, now)
	})
}

func (s *BalanceService) mutate(ctx context.Context, spanName string, userID, amount int64, createIfMissing bool, change func(b *domain.Balance, now time.Time) error) (*domain.Balance, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("amount", amount))

	b, err := lock.With(ctx, s.guard, lock.UserBalanceKey(userID), func(ctx context.Context) (*domain.Balance, error) {
		b, err := s.repo.FindByUserID(ctx, userID)
		if err != nil {
			if !createIfMissing || !errors.Is(err, domain.ErrBalanceNotFound) {
				return nil, err
			}
			b = &domain.Balance{UserID: userID}
		}
		if err := change(b, s.now()); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Debug().Int64("user_id", userID).Int64("amount", amount).Int64("balance", b.Amount).Msg(spanName)
	return b, nil
}
