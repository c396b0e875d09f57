package domain

import (
	"context"
	"time"
)

// CouponRepository 定义了券定义的持久化接口
type CouponRepository interface {
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	// Create 只插入新券，不覆盖已存在的定义
	Create(ctx context.Context, coupon *Coupon) error
	// RecordIssuance 在一个事务里写入用户券并增加 issued_quantity。
	// 用户已持有返回 ErrDuplicateIssuance，已发数量达到上限返回 ErrCouponSoldOut。
	RecordIssuance(ctx context.Context, uc *UserCoupon) error
}

// UserCouponRepository 定义了用户券的持久化接口
type UserCouponRepository interface {
	FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*UserCoupon, error)
	Update(ctx context.Context, uc *UserCoupon) error
	// ListHolders 返回持有该券的全部用户 (任何状态)
	ListHolders(ctx context.Context, couponID int64) ([]int64, error)
	// ExpireOverdue 将所属券已到期的 AVAILABLE 用户券置为 EXPIRED，返回影响行数
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Fact 是规则引擎评估时可见的事实
type Fact struct {
	UserID      int64
	CouponID    int64
	OrderAmount int64
}

// RuleEngine 评估券的使用条件
type RuleEngine interface {
	// Check 只做编译和类型检查，不求值
	Check(rule string) error
	Evaluate(rule string, fact Fact) (bool, error)
}
