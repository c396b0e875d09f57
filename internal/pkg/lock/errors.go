package lock

import "errors"

var (
	// ErrLockAcquisitionFailed 在 waitTime 内没有拿到锁。调用方不能假设任何副作用已经发生。
	ErrLockAcquisitionFailed = errors.New("lock: acquisition failed")
	// ErrLockInterrupted 等待锁的过程中 ctx 被取消
	ErrLockInterrupted = errors.New("lock: interrupted while waiting")
	// ErrUnknownStrategy 是配置错误，启动阶段即失败
	ErrUnknownStrategy = errors.New("lock: unknown strategy")
	// ErrKeyResolution 表示无法生成合法的锁 key，属于编程错误
	ErrKeyResolution = errors.New("lock: key resolution failed")
)
