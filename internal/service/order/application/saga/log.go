package saga

import "fmt"

// StepKind 是已完成步骤的类型
type StepKind int

const (
	StepBalanceDeducted StepKind = iota + 1
	StepStockDeducted
	StepCouponRedeemed
)

func (k StepKind) String() string {
	switch k {
	case StepBalanceDeducted:
		return "balance_deducted"
	case StepStockDeducted:
		return "stock_deducted"
	case StepCouponRedeemed:
		return "coupon_redeemed"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// Step 记录一个已经成功、需要时可以补偿的动作
type Step struct {
	Kind      StepKind
	UserID    int64
	Amount    int64
	ProductID int64
	Quantity  int64
	CouponID  int64
}

// Log 是不可变的执行记录，Append 返回新的 Log，原值不受影响
type Log struct {
	steps []Step
}

// Append 追加一步
func (l Log) Append(s Step) Log {
	steps := make([]Step, len(l.steps), len(l.steps)+1)
	copy(steps, l.steps)
	return Log{steps: append(steps, s)}
}

// Steps 返回按执行顺序排列的步骤副本
func (l Log) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Len 已完成的步骤数
func (l Log) Len() int {
	return len(l.steps)
}
