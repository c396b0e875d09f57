package lock

import (
	"context"
	"fmt"
	"time"
)

// Policy 描述某类资源使用的锁策略与时间参数
type Policy struct {
	Strategy  Strategy
	WaitTime  time.Duration
	LeaseTime time.Duration
}

// DefaultPolicy 用于没有单独配置的资源
var DefaultPolicy = Policy{
	Strategy:  StrategyPubSub,
	WaitTime:  3 * time.Second,
	LeaseTime: DefaultLeaseTime,
}

// Guard 把按资源配置的锁策略应用到临界区上
type Guard struct {
	registry *Registry
	defaults Policy
	policies map[Resource]Policy
}

// NewGuard 创建 Guard。所有策略必须已在 registry 中注册，否则返回 ErrUnknownStrategy。
func NewGuard(registry *Registry, defaults Policy, policies map[Resource]Policy) (*Guard, error) {
	if defaults.Strategy == "" {
		defaults.Strategy = DefaultPolicy.Strategy
	}
	if defaults.LeaseTime <= 0 {
		defaults.LeaseTime = DefaultLeaseTime
	}
	g := &Guard{registry: registry, defaults: defaults, policies: make(map[Resource]Policy, len(policies))}
	if _, err := registry.Resolve(defaults.Strategy); err != nil {
		return nil, err
	}
	for r, p := range policies {
		p = g.fill(p)
		if _, err := registry.Resolve(p.Strategy); err != nil {
			return nil, fmt.Errorf("policy %s: %w", r, err)
		}
		g.policies[r] = p
	}
	return g, nil
}

// fill 用默认值补齐未配置的字段
func (g *Guard) fill(p Policy) Policy {
	if p.Strategy == "" {
		p.Strategy = g.defaults.Strategy
	}
	if p.WaitTime < 0 {
		p.WaitTime = g.defaults.WaitTime
	}
	if p.LeaseTime <= 0 {
		p.LeaseTime = g.defaults.LeaseTime
	}
	return p
}

// PolicyFor 返回资源实际生效的策略
func (g *Guard) PolicyFor(r Resource) Policy {
	if p, ok := g.policies[r]; ok {
		return p
	}
	return g.defaults
}

// WithLock 在持有 key 对应的锁期间执行 fn
func (g *Guard) WithLock(ctx context.Context, key Key, fn func(ctx context.Context) error) error {
	if err := key.Validate(); err != nil {
		return err
	}
	p := g.PolicyFor(key.Resource)
	executor, err := g.registry.Resolve(p.Strategy)
	if err != nil {
		return err
	}
	return executor.Execute(ctx, key.String(), p.WaitTime, p.LeaseTime, fn)
}

// With 是 WithLock 的泛型版本
func With[T any](ctx context.Context, g *Guard, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.WithLock(ctx, key, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
