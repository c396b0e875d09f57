package domain

import "time"

// UserCouponStatus 定义了用户优惠券的生命周期状态
type UserCouponStatus string

const (
	StatusAvailable UserCouponStatus = "AVAILABLE" // 未使用
	StatusUsed      UserCouponStatus = "USED"      // 已使用
	StatusExpired   UserCouponStatus = "EXPIRED"   // 已过期
)

// UserCoupon 代表一个用户持有的一张具体的优惠券，(UserID, CouponID) 唯一。
// UsedAt 仅在 USED 状态下非空。
type UserCoupon struct {
	ID       int64
	UserID   int64
	CouponID int64
	Status   UserCouponStatus
	IssuedAt time.Time
	UsedAt   *time.Time
}

// NewUserCoupon 创建一张新发放的券
func NewUserCoupon(userID, couponID int64, now time.Time) *UserCoupon {
	return &UserCoupon{
		UserID:   userID,
		CouponID: couponID,
		Status:   StatusAvailable,
		IssuedAt: now,
	}
}

// IsAvailable 检查优惠券当前是否可用
func (uc *UserCoupon) IsAvailable() bool {
	return uc.Status == StatusAvailable
}

// Use 核销：AVAILABLE -> USED
func (uc *UserCoupon) Use(now time.Time) error {
	if uc.Status != StatusAvailable {
		return ErrCouponNotUsable
	}
	uc.Status = StatusUsed
	uc.UsedAt = &now
	return nil
}

// Restore 是 Use 的补偿：USED -> AVAILABLE
func (uc *UserCoupon) Restore() error {
	if uc.Status != StatusUsed {
		return ErrCouponNotUsable
	}
	uc.Status = StatusAvailable
	uc.UsedAt = nil
	return nil
}

// Expire 由时间驱动，任何状态都可以过期
func (uc *UserCoupon) Expire() {
	uc.Status = StatusExpired
	uc.UsedAt = nil
}
