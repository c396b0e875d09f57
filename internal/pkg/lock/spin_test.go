package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-core/internal/pkg/metrics"
)

func TestSpinExecutor_MutualExclusion(t *testing.T) {
	_, client := newTestRedis(t)
	e := NewSpinExecutor(client, WithPollInterval(2*time.Millisecond))
	assertMutualExclusion(t, e, "lock:product_stock:1", 20)
}

func TestSpinExecutor_ZeroWaitFailsImmediately(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("lock:user_balance:7", "someone-else"))
	e := NewSpinExecutor(client)

	before := testutil.ToFloat64(metrics.LockAcquireTotal.WithLabelValues("SPIN", "timeout"))
	called := false
	started := time.Now()
	err := e.Execute(context.Background(), "lock:user_balance:7", 0, time.Second, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockAcquisitionFailed)
	assert.False(t, called)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LockAcquireTotal.WithLabelValues("SPIN", "timeout")))
}

func TestSpinExecutor_ReleasesOnError(t *testing.T) {
	mr, client := newTestRedis(t)
	e := NewSpinExecutor(client)
	boom := errors.New("boom")

	err := e.Execute(context.Background(), "lock:order_payment:1", time.Second, time.Second, func(context.Context) error {
		assert.True(t, mr.Exists("lock:order_payment:1"))
		return boom
	})

	assert.Same(t, boom, err)
	assert.False(t, mr.Exists("lock:order_payment:1"))
}

func TestSpinExecutor_ReleasesOnPanic(t *testing.T) {
	mr, client := newTestRedis(t)
	e := NewSpinExecutor(client)

	assert.Panics(t, func() {
		_ = e.Execute(context.Background(), "lock:order_payment:2", time.Second, time.Second, func(context.Context) error {
			panic("callback exploded")
		})
	})
	assert.False(t, mr.Exists("lock:order_payment:2"))
}

func TestSpinExecutor_DoesNotDeleteLockTakenOverAfterExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	e := NewSpinExecutor(client)
	key := "lock:user_balance:3"

	err := e.Execute(context.Background(), key, time.Second, time.Second, func(context.Context) error {
		mr.FastForward(2 * time.Second)
		require.False(t, mr.Exists(key))
		return mr.Set(key, "new-owner")
	})
	require.NoError(t, err)

	v, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "new-owner", v)
}

func TestSpinExecutor_CancelWhileWaiting(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("lock:product_stock:9", "holder"))
	e := NewSpinExecutor(client)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := e.Execute(ctx, "lock:product_stock:9", 5*time.Second, time.Second, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpinExecutor_AcquiresAfterHolderReleases(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("lock:product_stock:5", "holder"))
	e := NewSpinExecutor(client, WithPollInterval(5*time.Millisecond))

	time.AfterFunc(50*time.Millisecond, func() { mr.Del("lock:product_stock:5") })

	called := false
	err := e.Execute(context.Background(), "lock:product_stock:5", 2*time.Second, time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCall_ReturnsValue(t *testing.T) {
	_, client := newTestRedis(t)
	e := NewSpinExecutor(client)

	v, err := Call(context.Background(), e, "lock:order_payment:11", time.Second, time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
