package infrastructure

import (
	"database/sql"

	"coupon-core/internal/service/order/domain"
)

// ToOrderModel 将领域实体转换为 GORM 模型
func ToOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CouponID != nil {
		m.CouponID = sql.NullInt64{Int64: *o.CouponID, Valid: true}
	}
	if o.CompletedAt != nil {
		m.CompletedAt = sql.NullTime{Time: *o.CompletedAt, Valid: true}
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:        it.ID,
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return m
}

// ToOrderDomain 将 GORM 模型转换为领域实体
func ToOrderDomain(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		Status:         domain.Status(m.Status),
		TotalAmount:    m.TotalAmount,
		DiscountAmount: m.DiscountAmount,
		FinalAmount:    m.FinalAmount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.CouponID.Valid {
		id := m.CouponID.Int64
		o.CouponID = &id
	}
	if m.CompletedAt.Valid {
		t := m.CompletedAt.Time
		o.CompletedAt = &t
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:        it.ID,
			OrderID:   it.OrderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return o
}
