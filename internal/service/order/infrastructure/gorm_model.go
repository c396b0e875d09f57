package infrastructure

import (
	"database/sql"
	"time"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID             int64  `gorm:"primaryKey"`
	UserID         int64  `gorm:"index"`
	Status         string `gorm:"size:16;index"`
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	CouponID       sql.NullInt64
	Items          []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    sql.NullTime
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID        int64 `gorm:"primaryKey"`
	OrderID   int64 `gorm:"index"`
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{&OrderModel{}, &OrderItemModel{}}
}
