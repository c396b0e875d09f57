package domain

import (
	"fmt"
	"time"
)

// DiscountType 优惠类型
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE" // 按比例打折，Value 为百分比
	DiscountFixed      DiscountType = "FIXED"      // 固定金额立减，Value 为最小货币单位
)

// Discount 描述一张券的优惠权益
type Discount struct {
	Type  DiscountType
	Value int64
}

// Coupon 是券的定义 (券模板)。
// IssuedQuantity 是持久化的已发数量，只用于对账；是否还能领取以 Redis 中的计数为准。
type Coupon struct {
	ID             int64
	Name           string
	TotalQuantity  int64
	IssuedQuantity int64
	ExpiresAt      time.Time
	Discount       Discount
	// Condition 是可选的 CEL 表达式，可用变量见 rule 包
	Condition string
}

// Validate 检查券定义是否合法
func (c *Coupon) Validate() error {
	switch {
	case c.TotalQuantity < 0:
		return fmt.Errorf("%w: negative total quantity", ErrInvalidCoupon)
	case c.IssuedQuantity < 0 || c.IssuedQuantity > c.TotalQuantity:
		return fmt.Errorf("%w: issued quantity %d out of [0, %d]", ErrInvalidCoupon, c.IssuedQuantity, c.TotalQuantity)
	case c.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing expiry", ErrInvalidCoupon)
	}
	switch c.Discount.Type {
	case DiscountPercentage:
		if c.Discount.Value <= 0 || c.Discount.Value > 100 {
			return fmt.Errorf("%w: percentage %d out of (0, 100]", ErrInvalidCoupon, c.Discount.Value)
		}
	case DiscountFixed:
		if c.Discount.Value <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive", ErrInvalidCoupon)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, c.Discount.Type)
	}
	return nil
}

// IsExpired 到期时间之后不再允许领取
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CalculateDiscount 计算 amount 可以优惠的金额，结果不会超过 amount
func (c *Coupon) CalculateDiscount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	switch c.Discount.Type {
	case DiscountPercentage:
		// 向下取整
		return amount * c.Discount.Value / 100
	case DiscountFixed:
		return min(c.Discount.Value, amount)
	default:
		return 0
	}
}
