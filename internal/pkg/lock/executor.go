package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
)

// Strategy 标识一种锁获取策略
type Strategy string

const (
	StrategyPubSub    Strategy = "PUBSUB"
	StrategySpin      Strategy = "SPIN"
	StrategyZookeeper Strategy = "ZOOKEEPER"
)

const (
	// DefaultLeaseTime 在调用方没有给出租期时使用
	DefaultLeaseTime = 30 * time.Second
	// releaseTimeout 限制释放锁的耗时，释放不受调用方 ctx 取消的影响
	releaseTimeout = 3 * time.Second
)

// ParseStrategy 解析配置中的策略名
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToUpper(strings.TrimSpace(s))); st {
	case StrategyPubSub, StrategySpin, StrategyZookeeper:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Executor 在持有 key 对应的锁期间执行 fn。
//
// 在 waitTime 内拿不到锁返回 ErrLockAcquisitionFailed，等待期间 ctx 被取消返回 ErrLockInterrupted。
// fn 恰好执行一次；无论 fn 成功、返回错误还是 panic，锁都会被释放。
// 释放失败只记录日志，不会覆盖 fn 的返回值。
type Executor interface {
	Execute(ctx context.Context, key string, waitTime, leaseTime time.Duration, fn func(ctx context.Context) error) error
}

// Call 是 Executor.Execute 的泛型版本，返回临界区的计算结果
func Call[T any](ctx context.Context, e Executor, key string, waitTime, leaseTime time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, key, waitTime, leaseTime, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// runLocked 执行临界区并保证释放
func runLocked(ctx context.Context, strategy Strategy, key string, fn func(ctx context.Context) error, release func(ctx context.Context) (bool, error)) error {
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		held, err := release(relCtx)
		switch {
		case err != nil:
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).Str("strategy", string(strategy)).Msg("lock release failed")
		case !held:
			// 租期已过，锁可能已被其他持有者接管
			logger.Ctx(ctx).Warn().Str("key", key).Str("strategy", string(strategy)).Msg("lock was no longer held at release")
		}
	}()
	return fn(ctx)
}

func leaseOrDefault(lease time.Duration) time.Duration {
	if lease <= 0 {
		return DefaultLeaseTime
	}
	return lease
}

func acquisitionFailed(strategy Strategy, key string, started time.Time, cause error) error {
	observe(strategy, "timeout", started)
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrLockAcquisitionFailed, key, cause)
	}
	return fmt.Errorf("%w: %s", ErrLockAcquisitionFailed, key)
}

func interrupted(ctx context.Context, strategy Strategy, key string, started time.Time) error {
	observe(strategy, "interrupted", started)
	return fmt.Errorf("%w: %s: %w", ErrLockInterrupted, key, context.Cause(ctx))
}

func observe(strategy Strategy, result string, started time.Time) {
	metrics.LockAcquireTotal.WithLabelValues(string(strategy), result).Inc()
	metrics.LockWaitSeconds.WithLabelValues(string(strategy)).Observe(time.Since(started).Seconds())
}
