package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
)

type cartRepo struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetBySessionKey(ctx context.Context, sessionKey string) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) Create(ctx context.Context, c *cart.Cart) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cartRepo) ListItems(ctx context.Context, cartID int64) ([]*cart.Item, error) {
	var list []*cart.Item
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *cartRepo) DeleteItem(ctx context.Context, itemID int64) error {
	return r.db.WithContext(ctx).Delete(&cart.Item{}, itemID).Error
}

// DeleteOlderThan 先删条目再删购物车，显式控制删除顺序，不依赖外键级联
func (r *cartRepo) DeleteOlderThan(ctx context.Context, statuses []cart.Status, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&cart.Cart{}).
			Where("status IN ?", statuses).
			Where("updated_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("cart_id IN ?", ids).Delete(&cart.Item{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&cart.Cart{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *cartRepo) DemoteStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&cart.Cart{}).
		Where("status = ?", cart.StatusProcessing).
		Where("updated_at < ?", cutoff).
		Update("status", cart.StatusFailed)
	return res.RowsAffected, res.Error
}
