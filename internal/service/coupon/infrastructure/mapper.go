package infrastructure

import (
	"database/sql"

	"coupon-core/internal/service/coupon/domain"
)

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(model *CouponModel) *domain.Coupon {
	if model == nil {
		return nil
	}
	return &domain.Coupon{
		ID:             model.ID,
		Name:           model.Name,
		TotalQuantity:  model.TotalQuantity,
		IssuedQuantity: model.IssuedQuantity,
		ExpiresAt:      model.ExpiresAt,
		Discount: domain.Discount{
			Type:  domain.DiscountType(model.DiscountType),
			Value: model.DiscountValue,
		},
		Condition: model.Condition,
	}
}

// FromDomainCoupon 将领域模型转换为数据库模型
func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	if c == nil {
		return nil
	}
	return &CouponModel{
		ID:             c.ID,
		Name:           c.Name,
		TotalQuantity:  c.TotalQuantity,
		IssuedQuantity: c.IssuedQuantity,
		ExpiresAt:      c.ExpiresAt,
		DiscountType:   string(c.Discount.Type),
		DiscountValue:  c.Discount.Value,
		Condition:      c.Condition,
	}
}

// ToDomainUserCoupon 将数据库模型转换为领域模型
func ToDomainUserCoupon(model *UserCouponModel) *domain.UserCoupon {
	if model == nil {
		return nil
	}
	uc := &domain.UserCoupon{
		ID:       model.ID,
		UserID:   model.UserID,
		CouponID: model.CouponID,
		Status:   domain.UserCouponStatus(model.Status),
		IssuedAt: model.IssuedAt,
	}
	if model.UsedAt.Valid {
		usedAt := model.UsedAt.Time
		uc.UsedAt = &usedAt
	}
	return uc
}

// FromDomainUserCoupon 将领域模型转换为数据库模型
func FromDomainUserCoupon(uc *domain.UserCoupon) *UserCouponModel {
	if uc == nil {
		return nil
	}
	model := &UserCouponModel{
		ID:       uc.ID,
		UserID:   uc.UserID,
		CouponID: uc.CouponID,
		Status:   string(uc.Status),
		IssuedAt: uc.IssuedAt,
	}
	if uc.UsedAt != nil {
		model.UsedAt = sql.NullTime{Time: *uc.UsedAt, Valid: true}
	}
	return model
}
