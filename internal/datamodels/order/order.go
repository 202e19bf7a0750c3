package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status 订单状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
)

// Order 订单模型。金额在创建时从购物车快照计算，之后不再重算。
// SourceCartSessionKey 保留来源购物车的 session key，购物车本身删除后仍可追溯。
type Order struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	OrderNumber          string          `gorm:"size:10;uniqueIndex;not null" json:"order_number"`
	Status               Status          `gorm:"size:16;index;not null" json:"status"`
	DatePlaced           time.Time       `gorm:"autoCreateTime" json:"date_placed"`
	SourceCartSessionKey string          `gorm:"size:50;index;not null" json:"source_cart_session_key"`
	Subtotal             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Total                decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	TaxRate              decimal.Decimal `gorm:"type:decimal(4,3);not null" json:"tax_rate"`
	ContactEmail         string          `gorm:"size:100;not null" json:"contact_email"`
	ShippingAddressLine1 string          `gorm:"size:100;not null" json:"shipping_address_line1"`
	ShippingCity         string          `gorm:"size:100;not null" json:"shipping_city"`
	ShippingCountry      string          `gorm:"size:100;not null" json:"shipping_country"`
	ShippingZip          string          `gorm:"size:100;not null" json:"shipping_zip"`
}

// Item 订单条目，下单时从购物车条目按值拷贝，后续商品变更不影响历史订单
type Item struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	OrderID           int64           `gorm:"index;not null" json:"order_id"`
	OriginalProductID int64           `gorm:"not null" json:"original_product_id"`
	ProductName       string          `gorm:"size:100;not null" json:"product_name"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Quantity          int64           `gorm:"not null" json:"quantity"`
}

// TableName 显式指定表名：cart.Item 的默认表名同为 items，会在迁移时相互覆盖
func (Item) TableName() string { return "order_items" }

// Repository 订单仓储接口。订单号的占用查询必须在创建订单的同一个事务里做，
// 所以 GenerateNumber 走事务内闭包而不是这里。
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetItemByID(ctx context.Context, id int64) (*Item, error)
}

const (
	numberPrefix  = "ORD-"
	numberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	numberLength  = 6
	// maxNumberAttempts 碰撞重试上限，超过视为异常，宁可报错也不能死循环
	maxNumberAttempts = 20
)

// ErrNumberExhausted 连续碰撞超过上限
var ErrNumberExhausted = errors.New("order number generation exhausted retries")

// GenerateNumber 生成全局唯一订单号（ORD- + 6 位大写字母/数字），
// exists 用于查询号码是否已被占用，碰撞时重新生成。
func GenerateNumber(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		n, err := randomNumber()
		if err != nil {
			return "", err
		}
		taken, err := exists(n)
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
	}
	return "", ErrNumberExhausted
}

func randomNumber() (string, error) {
	buf := make([]byte, numberLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = numberCharset[int(b)%len(numberCharset)]
	}
	return numberPrefix + string(buf), nil
}
