package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"coupon-core/internal/pkg/database/dbtest"
	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/redis"
	balanceapp "coupon-core/internal/service/balance/application"
	balancedomain "coupon-core/internal/service/balance/domain"
	balanceinfra "coupon-core/internal/service/balance/infrastructure"
	couponapp "coupon-core/internal/service/coupon/application"
	coupondomain "coupon-core/internal/service/coupon/domain"
	couponinfra "coupon-core/internal/service/coupon/infrastructure"
	ledgeradapter "coupon-core/internal/service/coupon/infrastructure/adapter"
	"coupon-core/internal/service/coupon/infrastructure/rule"
	"coupon-core/internal/service/order/application/saga"
	"coupon-core/internal/service/order/domain"
	"coupon-core/internal/service/order/infrastructure"
	"coupon-core/internal/service/order/infrastructure/adapter"
	productapp "coupon-core/internal/service/product/application"
	productdomain "coupon-core/internal/service/product/domain"
	productinfra "coupon-core/internal/service/product/infrastructure"
	productadapter "coupon-core/internal/service/product/infrastructure/adapter"
)

type fixture struct {
	svc       *PaymentService
	orders    *infrastructure.GormOrderRepository
	balances  *balanceapp.BalanceService
	products  *productapp.ProductService
	coupons   *couponapp.CouponService
	couponDB  *couponinfra.GormRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	models := append(infrastructure.Models(), &balanceinfra.BalanceModel{}, &productinfra.ProductModel{})
	models = append(models, couponinfra.Models()...)
	db := dbtest.Open(t, models...)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), PoolSize: 20})
	t.Cleanup(func() { _ = rdb.Close() })

	registry := lock.NewRegistry(map[lock.Strategy]lock.Executor{lock.StrategySpin: lock.NewSpinExecutor(rdb)})
	guard, err := lock.NewGuard(registry, lock.Policy{Strategy: lock.StrategySpin, WaitTime: 5 * time.Second, LeaseTime: 10 * time.Second}, nil)
	require.NoError(t, err)
	tracer := noop.NewTracerProvider().Tracer("test")

	return buildFixture(t, db, rdb, guard, tracer)
}

func buildFixture(t *testing.T, db *gorm.DB, rdb *goredis.Client, guard *lock.Guard, tracer trace.Tracer) *fixture {
	t.Helper()
	ledger, err := ledgeradapter.NewLedgerRedisAdapter(redis.Wrap(rdb))
	require.NoError(t, err)
	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)

	couponRepo := couponinfra.NewGormRepository(db)
	productRepo := productinfra.NewGormRepository(db)
	balances := balanceapp.NewBalanceService(balanceinfra.NewGormRepository(db), guard, tracer)
	products := productapp.NewProductService(productRepo, guard, productadapter.LogPublisher{}, tracer)
	coupons := couponapp.NewCouponService(couponRepo, couponRepo, ledger, rules, guard, tracer)

	orders := infrastructure.NewGormOrderRepository(db)
	deps := saga.Deps{
		Balance:   adapter.NewBalanceAdapter(balances),
		Inventory: adapter.NewInventoryAdapter(products),
		Coupon:    adapter.NewCouponAdapter(coupons),
	}
	return &fixture{
		svc:       NewPaymentService(orders, deps, guard, tracer),
		orders:    orders,
		balances:  balances,
		products:  products,
		coupons:   coupons,
		couponDB:  couponRepo,
	}
}

func (f *fixture) product(t *testing.T, price, stock int64) int64 {
	t.Helper()
	p, err := f.products.Create(context.Background(), &productdomain.Product{Name: "item", Price: price, Stock: stock})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) stock(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := f.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) charge(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.balances.Charge(context.Background(), userID, amount)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := f.balances.Get(context.Background(), userID)
	require.NoError(t, err)
	return b.Amount
}

func (f *fixture) issuedCoupon(t *testing.T, userID, fixedOff int64) int64 {
	t.Helper()
	ctx := context.Background()
	c, err := f.coupons.CreateCoupon(ctx, &coupondomain.Coupon{
		Name:          "off",
		TotalQuantity: 10,
		ExpiresAt:     time.Now().Add(time.Hour),
		Discount:      coupondomain.Discount{Type: coupondomain.DiscountFixed, Value: fixedOff},
	})
	require.NoError(t, err)
	_, err = f.coupons.IssueCoupon(ctx, userID, c.ID)
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) userCouponStatus(t *testing.T, userID, couponID int64) coupondomain.UserCouponStatus {
	t.Helper()
	uc, err := f.couponDB.FindByUserAndCoupon(context.Background(), userID, couponID)
	require.NoError(t, err)
	return uc.Status
}

func TestPlaceOrder_AppliesCouponDiscount(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, 100, 10)
	p2 := f.product(t, 250, 10)
	couponID := f.issuedCoupon(t, 1, 80)

	order, err := f.svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:   1,
		Items:    []OrderLine{{ProductID: p1, Quantity: 2}, {ProductID: p2, Quantity: 1}},
		CouponID: &couponID,
	})

	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, int64(450), order.TotalAmount)
	assert.Equal(t, int64(80), order.DiscountAmount)
	assert.Equal(t, int64(370), order.FinalAmount)

	stored, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, int64(250), stored.Items[1].UnitPrice)
	require.NotNil(t, stored.CouponID)
	assert.Equal(t, couponID, *stored.CouponID)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: 999, Quantity: 1}}})

	assert.ErrorIs(t, err, productdomain.ErrProductNotFound)
}

func TestPay_CompletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	couponID := f.issuedCoupon(t, 1, 50)
	f.charge(t, 1, 1000)

	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 3}}, CouponID: &couponID})
	require.NoError(t, err)

	paid, err := f.svc.Pay(ctx, order.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, paid.Status)
	assert.NotNil(t, paid.CompletedAt)
	assert.Equal(t, int64(750), f.balance(t, 1))
	assert.Equal(t, int64(7), f.stock(t, p1))
	assert.Equal(t, coupondomain.StatusUsed, f.userCouponStatus(t, 1, couponID))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestPay_SecondLineOutOfStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	p2 := f.product(t, 100, 1)
	f.charge(t, 1, 1000)

	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 2}, {ProductID: p2, Quantity: 3}}})
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, order.ID, 1)

	assert.ErrorIs(t, err, productdomain.ErrInsufficientStock)
	assert.Equal(t, int64(1000), f.balance(t, 1), "balance refunded")
	assert.Equal(t, int64(10), f.stock(t, p1), "line 1 restored")
	assert.Equal(t, int64(1), f.stock(t, p2), "line 2 untouched")

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestPay_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	f.charge(t, 1, 50)

	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 1}}})
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, order.ID, 1)

	assert.ErrorIs(t, err, balancedomain.ErrInsufficientBalance)
	assert.Equal(t, int64(10), f.stock(t, p1))
}

func TestPay_CouponAlreadyUsedRestoresEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	couponID := f.issuedCoupon(t, 1, 10)
	f.charge(t, 1, 1000)

	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 1}}, CouponID: &couponID})
	require.NoError(t, err)
	// 下单后券在别处被用掉
	require.NoError(t, f.coupons.Use(ctx, 1, couponID))

	_, err = f.svc.Pay(ctx, order.ID, 1)

	assert.ErrorIs(t, err, coupondomain.ErrCouponNotUsable)
	assert.Equal(t, int64(1000), f.balance(t, 1))
	assert.Equal(t, int64(10), f.stock(t, p1))
	assert.Equal(t, coupondomain.StatusUsed, f.userCouponStatus(t, 1, couponID))
}

func TestPay_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	f.charge(t, 1, 1000)
	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 1}}})
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, 424242, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.svc.Pay(ctx, order.ID, 2)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound, "another user's order is invisible")

	_, err = f.svc.Pay(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, order.ID, 1)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyProcessed)
	assert.Equal(t, int64(900), f.balance(t, 1), "charged once")
}

func TestPay_ConcurrentAttemptsChargeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	f.charge(t, 1, 1000)
	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 1}}})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Pay(ctx, order.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, domain.ErrOrderAlreadyProcessed), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(900), f.balance(t, 1))
	assert.Equal(t, int64(9), f.stock(t, p1))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, 100, 10)
	f.charge(t, 1, 1000)
	order, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{UserID: 1, Items: []OrderLine{{ProductID: p1, Quantity: 1}}})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = f.svc.Pay(ctx, order.ID, 1)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyProcessed)
	_, err = f.svc.CancelOrder(ctx, order.ID, 1)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyProcessed)
	assert.Equal(t, int64(1000), f.balance(t, 1))
}
