package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"coupon-core/internal/service/product/domain"
)

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID      int64  `gorm:"primaryKey"`
	Name    string `gorm:"size:128"`
	Price   int64
	Stock   int64
	Version int64
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

// GormRepository 是 domain.Repository 的 GORM 实现
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建一个新的 GORM 仓储实例
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// FindByID 查找商品
func (r *GormRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return &domain.Product{ID: m.ID, Name: m.Name, Price: m.Price, Stock: m.Stock, Version: m.Version}, nil
}

// Create 新建商品
func (r *GormRepository) Create(ctx context.Context, p *domain.Product) error {
	m := ProductModel{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Version: p.Version}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return errors.Wrapf(err, "create product %q", p.Name)
	}
	p.ID = m.ID
	return nil
}

// UpdateStock 带版本检查的库存更新
func (r *GormRepository) UpdateStock(ctx context.Context, p *domain.Product) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"stock":   p.Stock,
			"version": gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update stock of product %d", p.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	p.Version++
	return nil
}

// WithinTx 在事务中执行 fn，fn 返回错误时回滚
func (r *GormRepository) WithinTx(ctx context.Context, fn func(repo domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}
