package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConcurrentModification 乐观锁版本冲突，重试次数用尽
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidQuantity        = errors.New("quantity must be positive")
)

// Product 是商品聚合。每次写入 Version 加一。
type Product struct {
	ID      int64
	Name    string
	Price   int64
	Stock   int64
	Version int64
}

// Deduct 扣减库存，库存不足时拒绝
func (p *Product) Deduct(qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

// Restore 归还库存
func (p *Product) Restore(qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += qty
	return nil
}

// StockLine 是一次库存变动中的一行
type StockLine struct {
	ProductID int64
	Quantity  int64
}

// StockChangeReason 库存变动原因
type StockChangeReason string

const (
	ReasonDeduct  StockChangeReason = "DEDUCT"
	ReasonRestore StockChangeReason = "RESTORE"
)

// StockChanged 是库存变动的领域事件
type StockChanged struct {
	ProductID  int64             `json:"product_id"`
	Delta      int64             `json:"delta"`
	Reason     StockChangeReason `json:"reason"`
	OrderID    int64             `json:"order_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Repository 定义了商品的持久化接口
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	// UpdateStock 以 p.Version 为期望版本写入库存，成功后 p.Version 加一；
	// 版本不匹配返回 ErrConcurrentModification
	UpdateStock(ctx context.Context, p *Product) error
	// WithinTx 在同一个数据库事务中执行 fn
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}
