package lock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseChannelPrefix 是锁释放通知的频道前缀，完整频道为 lock:release:<key>
const releaseChannelPrefix = "lock:release:"

// releaseScript 只有当前持有者 (token 匹配) 才能删除锁，删除后广播释放通知。
var releaseScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    redis.call('del', KEYS[1])
    redis.call('publish', ARGV[2], ARGV[1])
    return 1
end
return 0
`)

// redisLease 封装了基于 SET NX PX 的租约锁原语，供 PUBSUB 与 SPIN 两种策略共用
type redisLease struct {
	client goredis.UniversalClient
}

func (l redisLease) tryAcquire(ctx context.Context, key, token string, lease time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, token, leaseOrDefault(lease)).Result()
}

func (l redisLease) release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token, releaseChannelPrefix+key).Int64()
	if err != nil {
		return false, fmt.Errorf("lock: release %s: %w", key, err)
	}
	return n == 1, nil
}

// remainingLease 返回当前持有者剩余的租期；key 不存在时返回 0
func (l redisLease) remainingLease(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// acquireError 区分 ctx 取消与存储故障
func acquireError(ctx context.Context, strategy Strategy, key string, started time.Time, err error) error {
	if ctx.Err() != nil {
		return interrupted(ctx, strategy, key, started)
	}
	observe(strategy, "error", started)
	return fmt.Errorf("%w: %s: %v", ErrLockAcquisitionFailed, key, err)
}
