package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPollInterval 是自旋锁的默认重试间隔
const DefaultPollInterval = 10 * time.Millisecond

// SpinExecutor 以固定间隔重试 SET NX，直到 waitTime 耗尽。
// 每次尝试都会带上租期，即使持有者崩溃也最多阻塞其他人 leaseTime。
type SpinExecutor struct {
	lease        redisLease
	pollInterval time.Duration
}

// SpinOption 配置 SpinExecutor
type SpinOption func(*SpinExecutor)

// WithPollInterval 设置重试间隔
func WithPollInterval(d time.Duration) SpinOption {
	return func(e *SpinExecutor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// NewSpinExecutor 创建自旋锁执行器
func NewSpinExecutor(client goredis.UniversalClient, opts ...SpinOption) *SpinExecutor {
	e := &SpinExecutor{lease: redisLease{client: client}, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute 实现 Executor
func (e *SpinExecutor) Execute(ctx context.Context, key string, waitTime, leaseTime time.Duration, fn func(ctx context.Context) error) error {
	started := time.Now()
	deadline := started.Add(waitTime)
	token := uuid.NewString()

	for {
		if ctx.Err() != nil {
			return interrupted(ctx, StrategySpin, key, started)
		}
		ok, err := e.lease.tryAcquire(ctx, key, token, leaseTime)
		if err != nil {
			return acquireError(ctx, StrategySpin, key, started, err)
		}
		if ok {
			observe(StrategySpin, "acquired", started)
			return runLocked(ctx, StrategySpin, key, fn, func(ctx context.Context) (bool, error) {
				return e.lease.release(ctx, key, token)
			})
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return acquisitionFailed(StrategySpin, key, started, nil)
		}
		timer := time.NewTimer(min(e.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return interrupted(ctx, StrategySpin, key, started)
		case <-timer.C:
		}
	}
}
