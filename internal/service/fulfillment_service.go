package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/order"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
	"github.com/hasan-abir/commerceproject/internal/notifier"
)

// ErrCartGone 购物车已不在 PROCESSING（被清理或状态不对），重试也不会成功
var ErrCartGone = errors.New("cart missing or not in PROCESSING")

// FulfillmentService 履约：在一个事务里把 PROCESSING 购物车固化成订单。
// 队列是 at-least-once，重复投递靠“购物车必须还在 PROCESSING”天然幂等。
type FulfillmentService struct {
	db       *gorm.DB
	notifier notifier.Notifier
	taxRate  decimal.Decimal
}

// NewFulfillmentService 创建履约服务
func NewFulfillmentService(db *gorm.DB, n notifier.Notifier, taxRate decimal.Decimal) *FulfillmentService {
	return &FulfillmentService{db: db, notifier: n, taxRate: taxRate}
}

// Fulfill 执行一次履约。事务内：
//  1. 按 session key 取购物车，必须还在 PROCESSING
//  2. 快照金额（每步向上取整到两位小数）
//  3. 创建 PENDING 订单和条目快照，删掉购物车条目
//  4. 购物车转 COMPLETED
//
// 事务外再发通知，通知失败不回滚订单。
// 事务失败时尽力把购物车翻成 FAILED，原始错误原样抛给队列重试。
func (s *FulfillmentService) Fulfill(ctx context.Context, msg FulfillmentMessage) error {
	var (
		placed    *order.Order
		lineItems []order.Item
		cartID    int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c cart.Cart
		if err := tx.Where("session_key = ?", msg.SessionKey).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: session %s", ErrCartGone, msg.SessionKey)
			}
			return err
		}
		cartID = c.ID
		if c.Status != cart.StatusProcessing {
			return fmt.Errorf("%w: cart %d is %s", ErrCartGone, c.ID, c.Status)
		}

		var items []*cart.Item
		if err := tx.Where("cart_id = ?", c.ID).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}

		type snapshot struct {
			productID int64
			name      string
			price     decimal.Decimal
			quantity  int64
		}
		snapshots := make([]snapshot, 0, len(items))
		priced := make([]pricedItem, 0, len(items))
		for _, it := range items {
			var p product.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				return fmt.Errorf("load product %d: %w", it.ProductID, err)
			}
			snapshots = append(snapshots, snapshot{
				productID: p.ID,
				name:      p.Name,
				price:     p.Price,
				quantity:  it.Quantity,
			})
			priced = append(priced, pricedItem{unitPrice: p.Price, quantity: it.Quantity})
		}
		subtotal, total := computeTotals(priced, s.taxRate)

		number, err := order.GenerateNumber(func(n string) (bool, error) {
			var count int64
			if err := tx.Model(&order.Order{}).Where("order_number = ?", n).Count(&count).Error; err != nil {
				return false, err
			}
			return count > 0, nil
		})
		if err != nil {
			return err
		}

		o := order.Order{
			OrderNumber:          number,
			Status:               order.StatusPending,
			DatePlaced:           time.Now(),
			SourceCartSessionKey: msg.SessionKey,
			Subtotal:             subtotal,
			Total:                total,
			TaxRate:              s.taxRate,
			ContactEmail:         msg.ContactEmail,
			ShippingAddressLine1: msg.ShippingAddressLine1,
			ShippingCity:         msg.ShippingCity,
			ShippingCountry:      msg.ShippingCountry,
			ShippingZip:          msg.ShippingZip,
		}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}

		for i, snap := range snapshots {
			oi := order.Item{
				OrderID:           o.ID,
				OriginalProductID: snap.productID,
				ProductName:       snap.name,
				UnitPrice:         snap.price,
				Quantity:          snap.quantity,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			lineItems = append(lineItems, oi)
			if err := tx.Delete(&cart.Item{}, items[i].ID).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&cart.Cart{}).
			Where("id = ?", c.ID).
			Update("status", cart.StatusCompleted).Error; err != nil {
			return err
		}
		placed = &o
		return nil
	})
	if err != nil {
		GetMonitor().RecordFulfillmentFailed()
		s.markFailed(ctx, cartID, err)
		return err
	}

	GetMonitor().RecordFulfillmentProcessed()
	s.notify(ctx, msg.ContactEmail, placed, lineItems)
	return nil
}

// markFailed 尽力把购物车翻成 FAILED；这一步自己失败只记日志
func (s *FulfillmentService) markFailed(ctx context.Context, cartID int64, cause error) {
	if cartID == 0 || errors.Is(cause, ErrCartGone) {
		return
	}
	if err := s.db.WithContext(ctx).Model(&cart.Cart{}).
		Where("id = ?", cartID).
		Update("status", cart.StatusFailed).Error; err != nil {
		zap.L().Error("failed to mark cart FAILED",
			zap.Int64("cart_id", cartID), zap.Error(err))
	}
}

// notify 发订单确认通知，失败只记日志
func (s *FulfillmentService) notify(ctx context.Context, recipient string, o *order.Order, items []order.Item) {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order!\n\nOrder number: %s\n\n", o.OrderNumber)
	for _, it := range items {
		fmt.Fprintf(&b, "%s x%d @ %s\n", it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", o.Total.StringFixed(2))

	subject := fmt.Sprintf("Order Confirmation %s", o.OrderNumber)
	if err := s.notifier.Send(ctx, recipient, subject, b.String()); err != nil {
		GetMonitor().RecordNotifierError()
		zap.L().Error("failed to send order notification",
			zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}
