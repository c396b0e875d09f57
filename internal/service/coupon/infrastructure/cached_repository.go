package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"

	"coupon-core/internal/service/coupon/domain"
)

// DefaultCouponCacheTTL 是券定义在本地缓存中的存活时间
const DefaultCouponCacheTTL = 30 * time.Second

// CachedCouponRepository 在 CouponRepository 前加一层进程内缓存，只缓存券定义。
// 缓存中的 IssuedQuantity 可能落后于数据库，领券准入不依赖它。
type CachedCouponRepository struct {
	domain.CouponRepository
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedCouponRepository 包装 next，ttl <= 0 时使用默认值
func NewCachedCouponRepository(next domain.CouponRepository, ttl time.Duration) (*CachedCouponRepository, error) {
	if ttl <= 0 {
		ttl = DefaultCouponCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e4,
		MaxCost:            1 << 12, // 按条目计数，每条 cost 为 1
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &CachedCouponRepository{CouponRepository: next, cache: cache, ttl: ttl}, nil
}

func cacheKey(id int64) string {
	return "coupon:" + strconv.FormatInt(id, 10)
}

// FindByID 优先读缓存，返回副本，调用方修改不会污染缓存
func (r *CachedCouponRepository) FindByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	if v, ok := r.cache.Get(cacheKey(id)); ok {
		if c, ok := v.(domain.Coupon); ok {
			return &c, nil
		}
	}
	c, err := r.CouponRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetWithTTL(cacheKey(id), *c, 1, r.ttl)
	r.cache.Wait()
	return c, nil
}

// Create 写入后失效缓存
func (r *CachedCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	err := r.CouponRepository.Create(ctx, coupon)
	r.Invalidate(coupon.ID)
	return err
}

// Invalidate 删除某张券的缓存
func (r *CachedCouponRepository) Invalidate(id int64) {
	r.cache.Del(cacheKey(id))
	r.cache.Wait()
}

// Close 释放缓存资源
func (r *CachedCouponRepository) Close() {
	r.cache.Close()
}
