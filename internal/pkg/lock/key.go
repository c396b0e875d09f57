package lock

import (
	"fmt"
	"strconv"
	"strings"
)

// Resource 是锁 key 的命名空间，仅用于拼接前缀
type Resource int

const (
	ResourceUserCoupon Resource = iota + 1
	ResourceProductStock
	ResourceProductBatchStock
	ResourceUserBalance
	ResourceOrderPayment
)

var resourceNames = map[Resource]string{
	ResourceUserCoupon:        "USER_COUPON",
	ResourceProductStock:      "PRODUCT_STOCK",
	ResourceProductBatchStock: "PRODUCT_BATCH_STOCK",
	ResourceUserBalance:       "USER_BALANCE",
	ResourceOrderPayment:      "ORDER_PAYMENT",
}

func (r Resource) String() string {
	if name, ok := resourceNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// Prefix 返回资源在 key 中的前缀，如 user_balance
func (r Resource) Prefix() string {
	return strings.ToLower(r.String())
}

// ParseResource 从配置中的名字解析资源
func ParseResource(s string) (Resource, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for r, name := range resourceNames {
		if name == upper {
			return r, nil
		}
	}
	return 0, fmt.Errorf("lock: unknown resource %q", s)
}

// Key 是一个已解析的锁名称
type Key struct {
	Resource Resource
	parts    []int64
}

// String 返回 "lock:<prefix>:<id>[:<id>...]"
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("lock:")
	b.WriteString(k.Resource.Prefix())
	for _, p := range k.parts {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p, 10))
	}
	return b.String()
}

// Validate 检查 key 是否可用
func (k Key) Validate() error {
	if _, ok := resourceNames[k.Resource]; !ok {
		return fmt.Errorf("%w: unknown resource %d", ErrKeyResolution, int(k.Resource))
	}
	if len(k.parts) == 0 {
		return fmt.Errorf("%w: %s has no identifier", ErrKeyResolution, k.Resource)
	}
	for _, p := range k.parts {
		if p <= 0 {
			return fmt.Errorf("%w: %s has non-positive identifier %d", ErrKeyResolution, k.Resource, p)
		}
	}
	return nil
}

// UserCouponKey 锁定某个用户持有的某张券
func UserCouponKey(userID, couponID int64) Key {
	return Key{Resource: ResourceUserCoupon, parts: []int64{userID, couponID}}
}

// ProductStockKey 锁定单个商品的库存
func ProductStockKey(productID int64) Key {
	return Key{Resource: ResourceProductStock, parts: []int64{productID}}
}

// ProductBatchKey 锁定一次批量扣减 (以订单为单位)
func ProductBatchKey(orderID int64) Key {
	return Key{Resource: ResourceProductBatchStock, parts: []int64{orderID}}
}

// UserBalanceKey 锁定用户余额
func UserBalanceKey(userID int64) Key {
	return Key{Resource: ResourceUserBalance, parts: []int64{userID}}
}

// OrderPaymentKey 锁定订单支付流程
func OrderPaymentKey(orderID int64) Key {
	return Key{Resource: ResourceOrderPayment, parts: []int64{orderID}}
}
