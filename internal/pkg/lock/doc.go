// Package lock 提供跨进程的分布式互斥锁。
//
// 锁的获取策略可插拔：基于 Redis 发布订阅唤醒的公平锁 (PUBSUB)、
// 固定间隔轮询的自旋锁 (SPIN) 以及基于 ZooKeeper 临时顺序节点的公平锁 (ZOOKEEPER)。
// 业务代码通过 Guard.WithLock 显式声明临界区，锁的 key 由按资源划分的类型化构造函数生成。
package lock
