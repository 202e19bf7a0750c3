package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
)

// FulfillmentPublisher 把履约消息投给队列，投递即返回
type FulfillmentPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// AddItemInput 加购请求体
type AddItemInput struct {
	Product  int64 `json:"product"`
	Quantity int64 `json:"quantity"`
}

// OrderData 下单请求体，扁平校验：必填、邮箱格式、长度上限 100
type OrderData struct {
	ContactEmail         string `json:"contact_email" validate:"required,email,max=100"`
	ShippingAddressLine1 string `json:"shipping_address_line1" validate:"required,max=100"`
	ShippingCity         string `json:"shipping_city" validate:"required,max=100"`
	ShippingCountry      string `json:"shipping_country" validate:"required,max=100"`
	ShippingZip          string `json:"shipping_zip" validate:"required,max=100"`
}

// FulfillmentMessage 履约队列消息，带上会话键和联系/收货信息
type FulfillmentMessage struct {
	SessionKey string `json:"session_key"`
	OrderData
}

// CheckoutService 结算编排：加购和下单两条事务链路。
// 库存扣减只发生在行锁事务里，任何一步失败整个事务回滚。
type CheckoutService struct {
	db        *gorm.DB
	carts     cart.Repository
	idem      *IdempotencyService
	publisher FulfillmentPublisher
	validate  *validator.Validate
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(db *gorm.DB, carts cart.Repository, idem *IdempotencyService, publisher FulfillmentPublisher) *CheckoutService {
	v := validator.New()
	return &CheckoutService{
		db:        db,
		carts:     carts,
		idem:      idem,
		publisher: publisher,
		validate:  v,
	}
}

// AddItem 加购。前置校验顺序固定：先会话、再幂等键，然后才进事务。
func (s *CheckoutService) AddItem(ctx context.Context, sessionKey, idempotencyKey string, in AddItemInput) (*cart.Item, error) {
	GetMonitor().RecordCheckoutRequest()

	c, err := s.activeCart(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(in)
	if err := s.idem.Admit(ctx, ClassCart, idempotencyKey, sessionKey, body); err != nil {
		return nil, err
	}

	if in.Quantity < 1 {
		return nil, fieldError("quantity", "Ensure this value is greater than or equal to 1.")
	}

	var created *cart.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p product.Product
		if err := withRowLock(tx).First(&p, in.Product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fieldError("product", "Invalid product - Object does not exist.")
			}
			return err
		}

		// (cart, product) 组合唯一，重复加购直接拒绝
		var dup int64
		if err := tx.Model(&cart.Item{}).
			Where("cart_id = ? AND product_id = ?", c.ID, p.ID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fieldError("product", "The fields cart, product must make a unique set.")
		}

		if p.Stock < in.Quantity {
			GetMonitor().RecordStockShortage()
			return &StockShortageError{ProductName: p.Name}
		}
		p.Stock -= in.Quantity
		if err := tx.Save(&p).Error; err != nil {
			return err
		}

		it := &cart.Item{CartID: c.ID, ProductID: p.ID, Quantity: in.Quantity}
		if err := tx.Create(it).Error; err != nil {
			return err
		}
		if err := touchCart(tx, c.ID); err != nil {
			return err
		}
		created = it
		return nil
	})
	if err != nil {
		return nil, err
	}

	GetMonitor().RecordCheckoutAccepted()
	return created, nil
}

// PlaceOrder 下单。条目按插入顺序逐个锁行、验库存、扣库存；
// 第一个不够的条目会被从购物车里删掉（这条删除在回滚后单独落库），
// 其余已扣的库存随事务回滚。全部通过后购物车转 PROCESSING 并投递履约消息。
func (s *CheckoutService) PlaceOrder(ctx context.Context, sessionKey, idempotencyKey string, data OrderData) error {
	GetMonitor().RecordCheckoutRequest()

	c, err := s.activeCart(ctx, sessionKey)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(data)
	if err := s.idem.Admit(ctx, ClassOrder, idempotencyKey, sessionKey, body); err != nil {
		return err
	}

	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(items) < 1 {
		return ErrNoCartItems
	}

	if err := s.validateOrderData(data); err != nil {
		return err
	}

	var shortItemID int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			var p product.Product
			if err := withRowLock(tx).First(&p, it.ProductID).Error; err != nil {
				return err
			}
			if p.Stock < it.Quantity {
				shortItemID = it.ID
				return &StockShortageError{ProductName: p.Name}
			}
			p.Stock -= it.Quantity
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		return tx.Model(&cart.Cart{}).
			Where("id = ?", c.ID).
			Update("status", cart.StatusProcessing).Error
	})
	if err != nil {
		var shortage *StockShortageError
		if errors.As(err, &shortage) && shortItemID != 0 {
			GetMonitor().RecordStockShortage()
			// 缺货条目移出购物车，方便调用方修正后重试
			if delErr := s.carts.DeleteItem(ctx, shortItemID); delErr != nil {
				zap.L().Error("failed to drop out-of-stock cart item",
					zap.Int64("item_id", shortItemID), zap.Error(delErr))
			}
		}
		return err
	}

	msg := FulfillmentMessage{SessionKey: sessionKey, OrderData: data}
	payload, err := json.Marshal(&msg)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		// 库存已预留、购物车已是 PROCESSING；滞留清理兜底降级
		GetMonitor().RecordMQError()
		zap.L().Error("failed to publish fulfillment message",
			zap.String("session_key", sessionKey), zap.Error(err))
		return fmt.Errorf("enqueue fulfillment: %w", err)
	}

	GetMonitor().RecordCheckoutAccepted()
	return nil
}

func (s *CheckoutService) activeCart(ctx context.Context, sessionKey string) (*cart.Cart, error) {
	if sessionKey == "" {
		return nil, ErrSessionRequired
	}
	c, err := s.carts.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionRequired
		}
		return nil, err
	}
	if c.Status != cart.StatusActive {
		return nil, ErrSessionRequired
	}
	return c, nil
}

// validateOrderData 校验失败时转成字段级错误文案
func (s *CheckoutService) validateOrderData(data OrderData) error {
	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonFieldName(fe.Field())] = validationMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}

// jsonFieldName 结构体字段名转请求体里的 snake_case 字段名
func jsonFieldName(field string) string {
	switch field {
	case "ContactEmail":
		return "contact_email"
	case "ShippingAddressLine1":
		return "shipping_address_line1"
	case "ShippingCity":
		return "shipping_city"
	case "ShippingCountry":
		return "shipping_country"
	case "ShippingZip":
		return "shipping_zip"
	default:
		return field
	}
}
