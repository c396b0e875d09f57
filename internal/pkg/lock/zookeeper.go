package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

// DefaultZookeeperRoot 是所有分布式锁节点的根路径
const DefaultZookeeperRoot = "/distributed_locks"

// ZookeeperConn 是 ZookeeperExecutor 用到的 *zk.Conn 方法子集
type ZookeeperConn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Delete(path string, version int32) error
}

// ZookeeperExecutor 基于临时顺序节点实现公平锁：序号最小的节点持有锁，其余节点只监听自己的前驱。
// 租期由 ZooKeeper 会话决定，会话失效时临时节点自动删除，leaseTime 参数不生效。
type ZookeeperExecutor struct {
	conn  ZookeeperConn
	root  string
	acl   []zk.ACL
	paths sync.Map // 已确认存在的锁父节点
}

// NewZookeeperExecutor 创建 ZooKeeper 锁执行器，root 为空时使用 DefaultZookeeperRoot
func NewZookeeperExecutor(conn ZookeeperConn, root string) *ZookeeperExecutor {
	if root == "" {
		root = DefaultZookeeperRoot
	}
	return &ZookeeperExecutor{
		conn: conn,
		root: strings.TrimSuffix(root, "/"),
		acl:  zk.WorldACL(zk.PermAll),
	}
}

// ConnectZookeeper 连接 ZooKeeper 集群，servers 为逗号分隔的地址列表
func ConnectZookeeper(servers string, sessionTimeout time.Duration) (*zk.Conn, error) {
	hosts := strings.Split(servers, ",")
	conn, _, err := zk.Connect(hosts, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("lock: connect zookeeper %s: %w", servers, err)
	}
	return conn, nil
}

// ensurePath 逐级创建持久节点
func (e *ZookeeperExecutor) ensurePath(path string) error {
	if _, ok := e.paths.Load(path); ok {
		return nil
	}
	current := ""
	for _, segment := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		current += "/" + segment
		if _, err := e.conn.Create(current, nil, 0, e.acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create %s: %w", current, err)
		}
	}
	e.paths.Store(path, struct{}{})
	return nil
}

// Execute 实现 Executor
func (e *ZookeeperExecutor) Execute(ctx context.Context, key string, waitTime, _ time.Duration, fn func(ctx context.Context) error) error {
	started := time.Now()
	deadline := started.Add(waitTime)
	lockPath := e.root + "/" + key

	if err := e.ensurePath(lockPath); err != nil {
		return acquireError(ctx, StrategyZookeeper, key, started, err)
	}
	if ctx.Err() != nil {
		return interrupted(ctx, StrategyZookeeper, key, started)
	}

	node, err := e.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", nil, e.acl)
	if err != nil {
		return acquireError(ctx, StrategyZookeeper, key, started, err)
	}
	myName := strings.TrimPrefix(node, lockPath+"/")
	abandon := func() { _ = e.deleteNode(node) }

	for {
		children, _, err := e.conn.Children(lockPath)
		if err != nil {
			abandon()
			return acquireError(ctx, StrategyZookeeper, key, started, err)
		}
		sortBySequence(children)

		idx := indexOf(children, myName)
		if idx < 0 {
			// 自己的节点不见了，通常意味着会话已过期
			return acquireError(ctx, StrategyZookeeper, key, started, fmt.Errorf("node %s disappeared", node))
		}
		if idx == 0 {
			observe(StrategyZookeeper, "acquired", started)
			return runLocked(ctx, StrategyZookeeper, key, fn, func(context.Context) (bool, error) {
				err := e.deleteNode(node)
				if errors.Is(err, zk.ErrNoNode) {
					return false, nil
				}
				return err == nil, err
			})
		}

		exists, _, events, err := e.conn.ExistsW(lockPath + "/" + children[idx-1])
		if err != nil {
			abandon()
			return acquireError(ctx, StrategyZookeeper, key, started, err)
		}
		if !exists {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			abandon()
			return acquisitionFailed(StrategyZookeeper, key, started, nil)
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			abandon()
			return interrupted(ctx, StrategyZookeeper, key, started)
		case <-events:
			timer.Stop()
		case <-timer.C:
			abandon()
			return acquisitionFailed(StrategyZookeeper, key, started, nil)
		}
	}
}

func (e *ZookeeperExecutor) deleteNode(node string) error {
	if err := e.conn.Delete(node, -1); err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return err
		}
		return fmt.Errorf("lock: delete %s: %w", node, err)
	}
	return nil
}

// sortBySequence 按顺序节点的 10 位序号后缀排序；受保护节点带有随机前缀，不能直接按字符串排序
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

func sequenceOf(name string) string {
	if len(name) < 10 {
		return name
	}
	return name[len(name)-10:]
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}
