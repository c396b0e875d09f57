package infrastructure

import (
	"database/sql"
	"time"
)

// CouponModel 对应数据库中的 coupons 表
type CouponModel struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"size:128"`
	TotalQuantity  int64
	IssuedQuantity int64
	ExpiresAt      time.Time
	DiscountType   string `gorm:"size:16"`
	DiscountValue  int64
	// condition 是 MySQL 保留字
	Condition string `gorm:"column:rule_condition;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupons"
}

// UserCouponModel 对应数据库中的 user_coupons 表
type UserCouponModel struct {
	ID       int64  `gorm:"primaryKey"`
	UserID   int64  `gorm:"uniqueIndex:uk_user_coupon,priority:1"`
	CouponID int64  `gorm:"uniqueIndex:uk_user_coupon,priority:2;index"`
	Status   string `gorm:"size:16;index"`
	IssuedAt time.Time
	UsedAt   sql.NullTime
}

// TableName 指定 GORM 应该使用的表名
func (UserCouponModel) TableName() string {
	return "user_coupons"
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{&CouponModel{}, &UserCouponModel{}}
}
