package domain

import "errors"

var (
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponSoldOut 券已发完
	ErrCouponSoldOut = errors.New("coupon sold out")
	// ErrDuplicateIssuance 同一用户重复领取同一张券
	ErrDuplicateIssuance = errors.New("coupon already issued to user")
	ErrCouponExpired     = errors.New("coupon expired")
	// ErrCouponNotUsable 用户没有这张券，或者券的状态不允许本次操作
	ErrCouponNotUsable = errors.New("coupon not usable")
	// ErrConditionNotMet 券的使用条件不满足
	ErrConditionNotMet = errors.New("coupon condition not met")
	ErrInvalidCoupon   = errors.New("invalid coupon definition")
)
