package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyProcessed 订单已不是 PENDING 状态
	ErrOrderAlreadyProcessed = errors.New("order already processed")
	ErrInvalidOrder          = errors.New("invalid order")
)

// OrderItem 是订单中的一行
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

// Subtotal 行金额
func (i OrderItem) Subtotal() int64 {
	return i.Quantity * i.UnitPrice
}

// Order 是订单聚合的根实体，金额均为最小货币单位
type Order struct {
	ID             int64
	UserID         int64
	Status         Status
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	CouponID       *int64
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// NewOrder 用于创建一个新的待支付订单。discount 不会超过订单总额。
func NewOrder(userID int64, items []OrderItem, couponID *int64, discount int64, now time.Time) (*Order, error) {
	if userID <= 0 || len(items) == 0 {
		return nil, fmt.Errorf("%w: user and items are required", ErrInvalidOrder)
	}
	var total int64
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: bad line for product %d", ErrInvalidOrder, item.ProductID)
		}
		if item.UnitPrice > 0 && item.Quantity > math.MaxInt64/item.UnitPrice {
			return nil, fmt.Errorf("%w: subtotal overflow for product %d", ErrInvalidOrder, item.ProductID)
		}
		sub := item.Subtotal()
		if total > math.MaxInt64-sub {
			return nil, fmt.Errorf("%w: order total overflow", ErrInvalidOrder)
		}
		total += sub
	}
	if discount < 0 || (discount > 0 && couponID == nil) {
		return nil, fmt.Errorf("%w: discount without coupon", ErrInvalidOrder)
	}
	discount = min(discount, total)

	return &Order{
		UserID:         userID,
		Status:         StatusPending,
		TotalAmount:    total,
		DiscountAmount: discount,
		FinalAmount:    total - discount,
		CouponID:       couponID,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsPending 只有待支付的订单可以支付或取消
func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

// Complete 支付完成
func (o *Order) Complete(now time.Time) error {
	if !o.IsPending() {
		return ErrOrderAlreadyProcessed
	}
	o.Status = StatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// Cancel 取消订单
func (o *Order) Cancel(now time.Time) error {
	if !o.IsPending() {
		return ErrOrderAlreadyProcessed
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}
