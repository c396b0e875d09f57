package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"coupon-core/internal/pkg/database"
	"coupon-core/internal/service/coupon/domain"
)

// GormRepository 同时实现 domain.CouponRepository 和 domain.UserCouponRepository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建一个新的 GORM 仓储实例
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// FindByID 查找券定义
func (r *GormRepository) FindByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %d", id)
	}
	return ToDomainCoupon(&model), nil
}

// Create 插入新的券定义，主键冲突时报错
func (r *GormRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	model := FromDomainCoupon(coupon)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create coupon %d", coupon.ID)
	}
	coupon.ID = model.ID
	return nil
}

// RecordIssuance 写入用户券，并在 issued_quantity < total_quantity 的条件下加一
func (r *GormRepository) RecordIssuance(ctx context.Context, uc *domain.UserCoupon) error {
	model := FromDomainUserCoupon(uc)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return domain.ErrDuplicateIssuance
			}
			return errors.Wrap(err, "insert user coupon")
		}

		res := tx.Model(&CouponModel{}).
			Where("id = ? AND issued_quantity < total_quantity", uc.CouponID).
			UpdateColumn("issued_quantity", gorm.Expr("issued_quantity + ?", 1))
		if res.Error != nil {
			return errors.Wrap(res.Error, "increment issued quantity")
		}
		if res.RowsAffected == 0 {
			return domain.ErrCouponSoldOut
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.ID = model.ID
	return nil
}

// FindByUserAndCoupon 查找用户持有的券
func (r *GormRepository) FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	var model UserCouponModel
	err := r.db.WithContext(ctx).Where("user_id = ? AND coupon_id = ?", userID, couponID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotUsable
		}
		return nil, errors.Wrapf(err, "find user coupon (%d, %d)", userID, couponID)
	}
	return ToDomainUserCoupon(&model), nil
}

// Update 保存用户券的状态变更
func (r *GormRepository) Update(ctx context.Context, uc *domain.UserCoupon) error {
	model := FromDomainUserCoupon(uc)
	err := r.db.WithContext(ctx).Model(&UserCouponModel{}).Where("id = ?", uc.ID).
		Updates(map[string]interface{}{
			"status":  model.Status,
			"used_at": model.UsedAt,
		}).Error
	return errors.Wrapf(err, "update user coupon %d", uc.ID)
}

// ListHolders 返回持有该券的全部用户
func (r *GormRepository) ListHolders(ctx context.Context, couponID int64) ([]int64, error) {
	var userIDs []int64
	err := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("coupon_id = ?", couponID).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list holders of coupon %d", couponID)
	}
	return userIDs, nil
}

// ExpireOverdue 批量过期所属券已到期的可用用户券
func (r *GormRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	db := r.db.WithContext(ctx)
	overdue := db.Model(&CouponModel{}).Select("id").Where("expires_at < ?", now)
	res := db.Model(&UserCouponModel{}).
		Where("status = ? AND coupon_id IN (?)", string(domain.StatusAvailable), overdue).
		Update("status", string(domain.StatusExpired))
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "expire overdue user coupons")
	}
	return res.RowsAffected, nil
}
