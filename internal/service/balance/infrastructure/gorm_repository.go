package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coupon-core/internal/service/balance/domain"
)

// BalanceModel 对应数据库中的 balances 表
type BalanceModel struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Amount    int64
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (BalanceModel) TableName() string {
	return "balances"
}

// GormRepository 是 domain.Repository 的 GORM 实现
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建一个新的 GORM 仓储实例
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// FindByUserID 查找用户余额
func (r *GormRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Balance, error) {
	var model BalanceModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, errors.Wrapf(err, "find balance of user %d", userID)
	}
	return &domain.Balance{UserID: model.UserID, Amount: model.Amount, UpdatedAt: model.UpdatedAt}, nil
}

// Save 以 upsert 的方式写入余额
func (r *GormRepository) Save(ctx context.Context, b *domain.Balance) error {
	model := BalanceModel{UserID: b.UserID, Amount: b.Amount, UpdatedAt: b.UpdatedAt}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&model).Error
	return errors.Wrapf(err, "save balance of user %d", b.UserID)
}
