package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品模型，Stock 为可售库存，只允许在行锁事务内扣减
type Product struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock     int64           `gorm:"not null" json:"stock"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// Repository 商品仓储接口。库存扣减不走这里，
// 只能在服务层的行锁事务里做。
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListActive(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
}
