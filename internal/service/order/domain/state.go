package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 等待支付
	StatusCompleted Status = "COMPLETED" // 已支付
	StatusCancelled Status = "CANCELLED" // 已取消
)
