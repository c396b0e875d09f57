// Package metrics 定义了服务的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CouponIssueTotal 按结果统计发券请求 (success / already_issued / sold_out / expired / not_found / error)
	CouponIssueTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_issue_total",
		Help: "Total number of coupon issue attempts by outcome",
	}, []string{"outcome"})

	// LockAcquireTotal 统计分布式锁的获取结果
	LockAcquireTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lock_acquire_total",
		Help: "Total number of distributed lock acquisitions by strategy and result",
	}, []string{"strategy", "result"})

	// LockWaitSeconds 记录获取锁的等待耗时
	LockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lock_wait_seconds",
		Help:    "Time spent waiting for a distributed lock",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 3},
	}, []string{"strategy"})

	// PaymentTotal 统计订单支付结果
	PaymentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_total",
		Help: "Total number of order payments by result",
	}, []string{"result"})

	// PaymentCompensationTotal 统计补偿动作的执行结果
	PaymentCompensationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_compensation_total",
		Help: "Total number of saga compensation actions by step and result",
	}, []string{"step", "result"})

	// ProductStockConflictTotal 统计批量扣减时的乐观锁冲突次数
	ProductStockConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_stock_conflict_total",
		Help: "Total number of optimistic version conflicts on product stock",
	})
)

// Register 将所有指标注册到 reg
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		CouponIssueTotal,
		LockAcquireTotal,
		LockWaitSeconds,
		PaymentTotal,
		PaymentCompensationTotal,
		ProductStockConflictTotal,
	)
}
