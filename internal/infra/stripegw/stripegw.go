package stripegw

import (
	"context"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"

	"github.com/hasan-abir/commerceproject/internal/config"
)

// Processor Stripe PaymentIntent 网关实现
type Processor struct{}

// Init 设置全局 API key 并返回处理器
func Init(cfg *config.StripeConfig) *Processor {
	stripe.Key = cfg.SecretKey
	return &Processor{}
}

// CreateIntent 创建支付意向，金额转成最小货币单位（分）
func (p *Processor) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (string, string, error) {
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(currency),
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", err
	}
	return pi.ID, pi.ClientSecret, nil
}

// IntentStatus 查询意向当前状态和支付方式
func (p *Processor) IntentStatus(ctx context.Context, intentID string) (string, string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return "", "", err
	}
	methodID := ""
	if pi.PaymentMethod != nil {
		methodID = pi.PaymentMethod.ID
	}
	return string(pi.Status), methodID, nil
}
