package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"coupon-core/internal/pkg/database/dbtest"
	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/service/balance/domain"
	"coupon-core/internal/service/balance/infrastructure"
)

func newTestService(t *testing.T) *BalanceService {
	t.Helper()
	repo := infrastructure.NewGormRepository(dbtest.Open(t, &infrastructure.BalanceModel{}))

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pubsub, err := lock.NewPubSubExecutor(context.Background(), rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pubsub.Close() })

	guard, err := lock.NewGuard(lock.NewRegistry(map[lock.Strategy]lock.Executor{lock.StrategyPubSub: pubsub}),
		lock.Policy{Strategy: lock.StrategyPubSub, WaitTime: 5 * time.Second, LeaseTime: 5 * time.Second}, nil)
	require.NoError(t, err)
	return NewBalanceService(repo, guard, noop.NewTracerProvider().Tracer("test"))
}

func TestBalanceService_ChargeUseRefund(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Use(ctx, 1, 10)
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)

	b, err := s.Charge(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.Amount)

	_, err = s.Use(ctx, 1, 101)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	b, err = s.Use(ctx, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), b.Amount)

	b, err = s.Refund(ctx, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.Amount)

	_, err = s.Charge(ctx, 0, 10)
	assert.ErrorIs(t, err, lock.ErrKeyResolution)
}

func TestBalanceService_ConcurrentUseNeverGoesNegative(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.Charge(ctx, 7, 300)
	require.NoError(t, err)

	var ok, insufficient int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Use(ctx, 7, 10)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrInsufficientBalance):
				atomic.AddInt32(&insufficient, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(30), ok)
	assert.Equal(t, int32(10), insufficient)
	b, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, b.Amount)
}
