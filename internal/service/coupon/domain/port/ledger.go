package port

import "context"

// LedgerResult 是一次原子领券的结果
type LedgerResult int

const (
	LedgerSuccess LedgerResult = iota + 1
	LedgerAlreadyIssued
	LedgerSoldOut
)

func (r LedgerResult) String() string {
	switch r {
	case LedgerSuccess:
		return "SUCCESS"
	case LedgerAlreadyIssued:
		return "ALREADY_ISSUED"
	case LedgerSoldOut:
		return "SOLD_OUT"
	default:
		return "UNKNOWN"
	}
}

// Ledger 是领券快速通道的出站端口。
// 它独占每张券的剩余计数和已领用户集合，所有判定与扣减在一次原子操作内完成。
type Ledger interface {
	// TryIssue 检查重复、检查库存、扣减，三步原子完成
	TryIssue(ctx context.Context, couponID, userID int64) (LedgerResult, error)
	// Revoke 撤销某个用户的领取：用户在集合中时移除并归还一个库存，返回是否发生了撤销
	Revoke(ctx context.Context, couponID, userID int64) (bool, error)
	// Prepare 设置库存并清空已领用户 (管理用)
	Prepare(ctx context.Context, couponID, stock int64) error
	// Seed 用持久化状态重建计数与已领用户集合
	Seed(ctx context.Context, couponID, remaining int64, userIDs []int64) error
	// Remaining 返回当前剩余库存，未初始化时为 0
	Remaining(ctx context.Context, couponID int64) (int64, error)
}
