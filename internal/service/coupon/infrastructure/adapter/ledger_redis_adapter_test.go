package adapter

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-core/internal/pkg/redis"
	"coupon-core/internal/service/coupon/domain/port"
)

func newTestLedger(t *testing.T) (*miniredis.Miniredis, *LedgerRedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	ledger, err := NewLedgerRedisAdapter(client)
	require.NoError(t, err)
	return mr, ledger
}

func TestLedger_ConcurrentDistinctUsers(t *testing.T) {
	mr, ledger := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Prepare(ctx, 42, 10))

	results := make(chan port.LedgerResult, 100)
	var wg sync.WaitGroup
	for uid := int64(1); uid <= 100; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			res, err := ledger.TryIssue(ctx, 42, uid)
			assert.NoError(t, err)
			results <- res
		}(uid)
	}
	wg.Wait()
	close(results)

	counts := map[port.LedgerResult]int{}
	for r := range results {
		counts[r]++
	}
	assert.Equal(t, 10, counts[port.LedgerSuccess])
	assert.Equal(t, 90, counts[port.LedgerSoldOut])

	stock, err := mr.Get("coupon:stock:{42}")
	require.NoError(t, err)
	assert.Equal(t, "0", stock)
	members, err := mr.Members("coupon:users:{42}")
	require.NoError(t, err)
	assert.Len(t, members, 10)
}

func TestLedger_SameUserConcurrently(t *testing.T) {
	_, ledger := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Prepare(ctx, 1, 5))

	results := make(chan port.LedgerResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.TryIssue(ctx, 1, 7)
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var got []port.LedgerResult
	for r := range results {
		got = append(got, r)
	}
	assert.ElementsMatch(t, []port.LedgerResult{port.LedgerSuccess, port.LedgerAlreadyIssued}, got)

	remaining, err := ledger.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), remaining)
}

func TestLedger_SoldOutDoesNotRememberUser(t *testing.T) {
	mr, ledger := newTestLedger(t)
	ctx := context.Background()

	// 未初始化的券视为已领完
	res, err := ledger.TryIssue(ctx, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSoldOut, res)
	assert.False(t, mr.Exists("coupon:users:{9}"))

	require.NoError(t, ledger.Prepare(ctx, 9, 1))
	res, err = ledger.TryIssue(ctx, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSuccess, res)
}

func TestLedger_NonPositiveCounterIsUntouched(t *testing.T) {
	mr, ledger := newTestLedger(t)
	require.NoError(t, mr.Set("coupon:stock:{3}", "-2"))

	res, err := ledger.TryIssue(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSoldOut, res)

	stock, _ := mr.Get("coupon:stock:{3}")
	assert.Equal(t, "-2", stock)
}

func TestLedger_Revoke(t *testing.T) {
	_, ledger := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Prepare(ctx, 5, 1))

	res, err := ledger.TryIssue(ctx, 5, 11)
	require.NoError(t, err)
	require.Equal(t, port.LedgerSuccess, res)

	revoked, err := ledger.Revoke(ctx, 5, 11)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = ledger.Revoke(ctx, 5, 11)
	require.NoError(t, err)
	assert.False(t, revoked)

	remaining, err := ledger.Remaining(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	res, err = ledger.TryIssue(ctx, 5, 11)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSuccess, res)
}

func TestLedger_Seed(t *testing.T) {
	_, ledger := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Seed(ctx, 8, 1, []int64{100, 200}))

	res, err := ledger.TryIssue(ctx, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerAlreadyIssued, res)

	res, err = ledger.TryIssue(ctx, 8, 300)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSuccess, res)

	res, err = ledger.TryIssue(ctx, 8, 400)
	require.NoError(t, err)
	assert.Equal(t, port.LedgerSoldOut, res)
}
