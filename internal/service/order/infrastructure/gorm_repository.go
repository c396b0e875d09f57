package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"coupon-core/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 在同一个事务中保存订单和订单行
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m := ToOrderModel(order)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrapf(err, "create order for user %d", order.UserID)
	}
	order.ID = m.ID
	for i := range order.Items {
		order.Items[i].ID = m.Items[i].ID
		order.Items[i].OrderID = m.ID
	}
	return nil
}

// FindByID 查找订单并预加载订单行
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "find order %d", id)
	}
	return ToOrderDomain(&m), nil
}

// UpdateStatus 只更新仍处于 PENDING 的订单
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	m := ToOrderModel(order)
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", order.ID, string(domain.StatusPending)).
		Updates(map[string]interface{}{
			"status":       m.Status,
			"updated_at":   m.UpdatedAt,
			"completed_at": m.CompletedAt,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update status of order %d", order.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderAlreadyProcessed
	}
	return nil
}
