package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/payment"
)

// PaymentProcessor 支付网关协作方（黑盒），本服务不重试网关调用
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (intentID, clientSecret string, err error)
	IntentStatus(ctx context.Context, intentID string) (status, paymentMethodID string, err error)
}

// ProcessorError 网关调用失败，区别于本地存储错误
type ProcessorError struct {
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor: %v", e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// ErrPaymentIntentNotFound 本地没有这条支付意向记录
var ErrPaymentIntentNotFound = errors.New("payment intent not found")

// PaymentService 支付意向的创建与确认
type PaymentService struct {
	repo      payment.Repository
	idem      *IdempotencyService
	processor PaymentProcessor
	currency  string
}

// NewPaymentService 创建支付服务
func NewPaymentService(repo payment.Repository, idem *IdempotencyService, processor PaymentProcessor, currency string) *PaymentService {
	return &PaymentService{repo: repo, idem: idem, processor: processor, currency: currency}
}

var minCharge = decimal.RequireFromString("0.01")

// CreateIntent 在网关创建支付意向并落一条 PENDING 记录，返回 client secret
func (s *PaymentService) CreateIntent(ctx context.Context, sessionKey, idempotencyKey string, total decimal.Decimal) (string, error) {
	if err := s.idem.Admit(ctx, ClassPayment, idempotencyKey, sessionKey, []byte(total.String())); err != nil {
		return "", err
	}
	if total.LessThan(minCharge) {
		return "", fieldError("total", "Ensure this value is greater than or equal to 0.01.")
	}

	intentID, clientSecret, err := s.processor.CreateIntent(ctx, total, s.currency)
	if err != nil {
		return "", &ProcessorError{Err: err}
	}

	in := &payment.Intent{
		Amount:          total,
		Currency:        s.currency,
		SessionKey:      sessionKey,
		OrderReference:  uuid.NewString(),
		PaymentIntentID: intentID,
		Status:          payment.StatusPending,
	}
	if err := s.repo.Create(ctx, in); err != nil {
		GetMonitor().RecordDBError()
		return "", err
	}
	return clientSecret, nil
}

// Confirm 向网关查询意向状态并更新本地记录，只有确认回调会改状态
func (s *PaymentService) Confirm(ctx context.Context, paymentIntentID string) (*payment.Intent, error) {
	in, err := s.repo.GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentIntentNotFound
		}
		return nil, err
	}

	status, methodID, err := s.processor.IntentStatus(ctx, paymentIntentID)
	if err != nil {
		return nil, &ProcessorError{Err: err}
	}

	// canceled 是网关唯一的失败终态；requires_payment_method 同时也是
	// 未发起支付时的初始态，不能当失败处理
	switch status {
	case "succeeded":
		in.Status = payment.StatusSucceeded
	case "canceled":
		in.Status = payment.StatusFailed
	default:
		in.Status = payment.StatusPending
	}
	if methodID != "" {
		in.PaymentMethodID = methodID
	}
	if err := s.repo.Update(ctx, in); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}
	return in, nil
}
