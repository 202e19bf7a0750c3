package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/payment"
)

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付意向仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, in *payment.Intent) error {
	return r.db.WithContext(ctx).Create(in).Error
}

func (r *paymentRepo) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*payment.Intent, error) {
	var in payment.Intent
	if err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *paymentRepo) Update(ctx context.Context, in *payment.Intent) error {
	return r.db.WithContext(ctx).Save(in).Error
}
