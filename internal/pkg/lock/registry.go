package lock

import (
	"fmt"
	"sync"
)

// Registry 保存启动时装配好的各策略执行器
type Registry struct {
	mu        sync.RWMutex
	executors map[Strategy]Executor
}

// NewRegistry 以给定的执行器创建注册表
func NewRegistry(executors map[Strategy]Executor) *Registry {
	r := &Registry{executors: make(map[Strategy]Executor, len(executors))}
	for s, e := range executors {
		r.executors[s] = e
	}
	return r
}

// Register 注册或替换某个策略的执行器
func (r *Registry) Register(strategy Strategy, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[strategy] = executor
}

// Resolve 返回策略对应的执行器，未注册时返回 ErrUnknownStrategy
func (r *Registry) Resolve(strategy Strategy) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrUnknownStrategy, strategy)
	}
	return e, nil
}
