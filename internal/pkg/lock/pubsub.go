package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"coupon-core/internal/pkg/logger"
)

// DefaultMaxBackstop 限制等待者在没有收到释放通知时的最长休眠时间
const DefaultMaxBackstop = 250 * time.Millisecond

// PubSubExecutor 是默认的锁策略：拿不到锁的调用方挂起，直到收到释放通知再重试。
//
// 每个执行器只持有一条 PSUBSCRIBE lock:release:* 连接，由 dispatch 分发给本进程内按 key 注册的等待者。
// 等待者在第一次尝试之前注册，所以尝试与订阅之间发生的释放不会丢失。
// 租期到期导致的释放不会发布通知，因此每次等待都有一个不超过持有者剩余 PTTL 的兜底定时器。
type PubSubExecutor struct {
	lease       redisLease
	pubsub      *goredis.PubSub
	maxBackstop time.Duration

	mu      sync.Mutex
	waiters map[string]map[chan struct{}]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// PubSubOption 配置 PubSubExecutor
type PubSubOption func(*PubSubExecutor)

// WithMaxBackstop 设置兜底定时器的上限
func WithMaxBackstop(d time.Duration) PubSubOption {
	return func(e *PubSubExecutor) {
		if d > 0 {
			e.maxBackstop = d
		}
	}
}

// NewPubSubExecutor 订阅释放频道并启动分发协程。订阅确认后才返回。
func NewPubSubExecutor(ctx context.Context, client goredis.UniversalClient, opts ...PubSubOption) (*PubSubExecutor, error) {
	ps := client.PSubscribe(ctx, releaseChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("lock: subscribe release channel: %w", err)
	}

	e := &PubSubExecutor{
		lease:       redisLease{client: client},
		pubsub:      ps,
		maxBackstop: DefaultMaxBackstop,
		waiters:     make(map[string]map[chan struct{}]struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.dispatch(ps.Channel())
	return e, nil
}

func (e *PubSubExecutor) dispatch(messages <-chan *goredis.Message) {
	defer close(e.done)
	for msg := range messages {
		key := strings.TrimPrefix(msg.Channel, releaseChannelPrefix)
		e.notify(key)
	}
}

func (e *PubSubExecutor) notify(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.waiters[key] {
		// 信号通道容量为 1，已有未消费的信号时丢弃即可
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *PubSubExecutor) register(key string) chan struct{} {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.waiters[key]
	if !ok {
		set = make(map[chan struct{}]struct{})
		e.waiters[key] = set
	}
	set[ch] = struct{}{}
	return ch
}

func (e *PubSubExecutor) unregister(key string, ch chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := e.waiters[key]
	delete(set, ch)
	if len(set) == 0 {
		delete(e.waiters, key)
	}
}

// waiterCount 返回 key 上的本地等待者数量
func (e *PubSubExecutor) waiterCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.waiters[key])
}

// Execute 实现 Executor
func (e *PubSubExecutor) Execute(ctx context.Context, key string, waitTime, leaseTime time.Duration, fn func(ctx context.Context) error) error {
	started := time.Now()
	deadline := started.Add(waitTime)
	token := uuid.NewString()

	wake := e.register(key)
	registered := true
	defer func() {
		if registered {
			e.unregister(key, wake)
		}
	}()

	for {
		if ctx.Err() != nil {
			return interrupted(ctx, StrategyPubSub, key, started)
		}
		ok, err := e.lease.tryAcquire(ctx, key, token, leaseTime)
		if err != nil {
			return acquireError(ctx, StrategyPubSub, key, started, err)
		}
		if ok {
			e.unregister(key, wake)
			registered = false
			observe(StrategyPubSub, "acquired", started)
			return runLocked(ctx, StrategyPubSub, key, fn, func(ctx context.Context) (bool, error) {
				return e.lease.release(ctx, key, token)
			})
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return acquisitionFailed(StrategyPubSub, key, started, nil)
		}
		backstop := min(remaining, e.maxBackstop)
		if ttl, err := e.lease.remainingLease(ctx, key); err == nil && ttl > 0 {
			backstop = min(backstop, ttl)
		}

		timer := time.NewTimer(backstop)
		select {
		case <-ctx.Done():
			timer.Stop()
			return interrupted(ctx, StrategyPubSub, key, started)
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Close 关闭订阅连接，等待分发协程退出
func (e *PubSubExecutor) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.pubsub.Close()
		<-e.done
		logger.Ctx(context.Background()).Info().Msg("lock release subscription closed")
	})
	return err
}
