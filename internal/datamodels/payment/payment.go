package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status 支付意向状态，仅由支付确认回调修改
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Intent 支付意向记录，PaymentIntentID 为支付网关侧的标识
type Intent struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"size:8;not null" json:"currency"`
	SessionKey      string          `gorm:"size:50;index" json:"session_key"`
	OrderReference  string          `gorm:"size:36" json:"order_reference"`
	PaymentIntentID string          `gorm:"size:64;uniqueIndex;not null" json:"payment_intent_id"`
	PaymentMethodID string          `gorm:"size:64" json:"payment_method_id"`
	Status          Status          `gorm:"size:16;index;not null" json:"status"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// Repository 支付意向仓储接口
type Repository interface {
	Create(ctx context.Context, in *Intent) error
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Intent, error)
	Update(ctx context.Context, in *Intent) error
}
