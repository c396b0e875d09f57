package application

import (
	"time"

	"coupon-core/internal/service/order/domain"
)

// OrderLine 是下单请求中的一行
type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// PlaceOrderRequest 是下单用例的输入数据
type PlaceOrderRequest struct {
	UserID   int64       `json:"user_id"`
	Items    []OrderLine `json:"items"`
	CouponID *int64      `json:"coupon_id,omitempty"`
}

// OrderActionRequest 是支付与取消用例的输入数据
type OrderActionRequest struct {
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// OrderResponse 是订单的输出数据
type OrderResponse struct {
	ID             int64               `json:"id"`
	UserID         int64               `json:"user_id"`
	Status         string              `json:"status"`
	TotalAmount    int64               `json:"total_amount"`
	DiscountAmount int64               `json:"discount_amount"`
	FinalAmount    int64               `json:"final_amount"`
	CouponID       *int64              `json:"coupon_id,omitempty"`
	Items          []OrderItemResponse `json:"items"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

// OrderItemResponse 是订单行的输出数据
type OrderItemResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// ToOrderResponse 从领域对象转换为输出 DTO
func ToOrderResponse(o *domain.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return &OrderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		CouponID:       o.CouponID,
		Items:          items,
		CompletedAt:    o.CompletedAt,
	}
}
