package cart

import (
	"context"
	"time"
)

// Status 购物车状态机：ACTIVE -> PROCESSING -> COMPLETED | FAILED
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal COMPLETED/FAILED 为终态，购物车不再可写
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Cart 购物车，按 session key 独占，一个会话同一时刻只有一个 ACTIVE 购物车
type Cart struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	SessionKey string    `gorm:"size:50;uniqueIndex;not null" json:"session_key"`
	Status     Status    `gorm:"size:16;index;not null;default:ACTIVE" json:"status"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// Item 购物车条目，(cart, product) 组合唯一
//
// TableName 显式指定表名：order.Item 的默认表名同为 items，会在迁移时相互覆盖
type Item struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CartID    int64     `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID int64     `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Item) TableName() string { return "cart_items" }

// Repository 购物车仓储接口。条目的创建和改量发生在服务层的行锁事务里，
// 这里只保留事务外会用到的操作。
type Repository interface {
	GetBySessionKey(ctx context.Context, sessionKey string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error

	// ListItems 返回条目，按插入顺序（主键升序），保证库存预留顺序可重放
	ListItems(ctx context.Context, cartID int64) ([]*Item, error)
	DeleteItem(ctx context.Context, itemID int64) error

	// DeleteOlderThan 删除指定状态、UpdatedAt 早于 cutoff 的购物车及其条目，返回删除数
	DeleteOlderThan(ctx context.Context, statuses []Status, cutoff time.Time) (int64, error)
	// DemoteStaleProcessing 将滞留超时的 PROCESSING 购物车降级为 FAILED，返回降级数
	DemoteStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}
