package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Balance 是用户的账户余额，以最小货币单位计，永远不为负
type Balance struct {
	UserID    int64
	Amount    int64
	UpdatedAt time.Time
}

// Deduct 扣减余额，余额不足时拒绝，不做截断
func (b *Balance) Deduct(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.Amount < amount {
		return ErrInsufficientBalance
	}
	b.Amount -= amount
	b.UpdatedAt = now
	return nil
}

// Credit 增加余额
func (b *Balance) Credit(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.Amount += amount
	b.UpdatedAt = now
	return nil
}

// Repository 定义了余额的持久化接口
type Repository interface {
	FindByUserID(ctx context.Context, userID int64) (*Balance, error)
	// Save 创建或覆盖用户余额
	Save(ctx context.Context, b *Balance) error
}
