package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
)

// CartService 购物车生命周期：发放、条目增删改、过期清理
type CartService struct {
	db       *gorm.DB
	carts    cart.Repository
	products product.Repository
	taxRate  decimal.Decimal
	reaper   *config.ReaperConfig
}

// NewCartService 创建购物车服务
func NewCartService(db *gorm.DB, carts cart.Repository, products product.Repository, taxRate decimal.Decimal, reaper *config.ReaperConfig) *CartService {
	return &CartService{
		db:       db,
		carts:    carts,
		products: products,
		taxRate:  taxRate,
		reaper:   reaper,
	}
}

// IssueCart 返回会话当前购物车；没有就建一个 ACTIVE 的。
// 购物车已进终态时返回 ErrCartClosed，调用方换新会话后重试。
func (s *CartService) IssueCart(ctx context.Context, sessionKey string) (*cart.Cart, error) {
	c, err := s.carts.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c = &cart.Cart{SessionKey: sessionKey, Status: cart.StatusActive}
			if err := s.carts.Create(ctx, c); err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, ErrCartClosed
	}
	return c, nil
}

// ActiveCart 下单链路的前置校验：必须有 ACTIVE 购物车
func (s *CartService) ActiveCart(ctx context.Context, sessionKey string) (*cart.Cart, error) {
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

// ItemView 购物车条目视图，带商品名和单价
type ItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
}

// View 购物车视图，金额为当前快照
type View struct {
	ID         int64           `json:"id"`
	SessionKey string          `json:"session_key"`
	Status     cart.Status     `json:"status"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
	Items      []ItemView      `json:"items"`
}

// BuildView 拼出购物车响应，小计/总计和履约时用同一套取整规则
func (s *CartService) BuildView(ctx context.Context, c *cart.Cart) (*View, error) {
	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	view := &View{
		ID:         c.ID,
		SessionKey: c.SessionKey,
		Status:     c.Status,
		Items:      make([]ItemView, 0, len(items)),
	}
	priced := make([]pricedItem, 0, len(items))
	for _, it := range items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		view.Items = append(view.Items, ItemView{
			ID:          it.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
		})
		priced = append(priced, pricedItem{unitPrice: p.Price, quantity: it.Quantity})
	}
	view.Subtotal, view.Total = computeTotals(priced, s.taxRate)
	return view, nil
}

// UpdateItemQuantity 修改条目数量。加量要在行锁下重新校验库存，
// 减量把差额还回库存，保持“加购即预留”的账目一致。
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionKey string, itemID, quantity int64) (*cart.Item, error) {
	if quantity < 1 {
		return nil, fieldError("quantity", "Ensure this value is greater than or equal to 1.")
	}

	var updated *cart.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, owner, err := s.ownedItem(tx, sessionKey, itemID)
		if err != nil {
			return err
		}

		delta := quantity - it.Quantity
		if delta != 0 {
			var p product.Product
			if err := withRowLock(tx).First(&p, it.ProductID).Error; err != nil {
				return err
			}
			if delta > 0 && p.Stock < delta {
				return &StockShortageError{ProductName: p.Name}
			}
			p.Stock -= delta
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}

		it.Quantity = quantity
		if err := tx.Save(it).Error; err != nil {
			return err
		}
		if err := touchCart(tx, owner.ID); err != nil {
			return err
		}
		updated = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveItem 删除条目并把已预留的库存还回去
func (s *CartService) RemoveItem(ctx context.Context, sessionKey string, itemID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, owner, err := s.ownedItem(tx, sessionKey, itemID)
		if err != nil {
			return err
		}

		var p product.Product
		if err := withRowLock(tx).First(&p, it.ProductID).Error; err == nil {
			p.Stock += it.Quantity
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Delete(&cart.Item{}, it.ID).Error; err != nil {
			return err
		}
		return touchCart(tx, owner.ID)
	})
}

// ownedItem 取条目并校验归属：别的会话的条目一律当不存在处理
func (s *CartService) ownedItem(tx *gorm.DB, sessionKey string, itemID int64) (*cart.Item, *cart.Cart, error) {
	var it cart.Item
	if err := tx.First(&it, itemID).Error; err != nil {
		return nil, nil, err
	}
	var c cart.Cart
	if err := tx.First(&c, it.CartID).Error; err != nil {
		return nil, nil, err
	}
	if c.SessionKey != sessionKey || c.Status != cart.StatusActive {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return &it, &c, nil
}

func touchCart(tx *gorm.DB, cartID int64) error {
	return tx.Model(&cart.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now()).Error
}

// ReapAbandoned 清理过期购物车：
// ACTIVE/FAILED 超过 48 小时、COMPLETED 超过 90 天的删除，
// PROCESSING 永不删除；滞留过久的 PROCESSING 先降级为 FAILED，
// 等下一轮按 FAILED 的保留期清掉。返回本轮删除数。
func (s *CartService) ReapAbandoned(ctx context.Context) (int64, error) {
	now := time.Now()

	staleCutoff := now.Add(-time.Duration(s.reaper.ProcessingStaleHours) * time.Hour)
	demoted, err := s.carts.DemoteStaleProcessing(ctx, staleCutoff)
	if err != nil {
		return 0, err
	}
	if demoted > 0 {
		zap.L().Warn("demoted stale processing carts to FAILED", zap.Int64("count", demoted))
	}

	abandonedCutoff := now.Add(-time.Duration(s.reaper.AbandonedAfterHours) * time.Hour)
	n1, err := s.carts.DeleteOlderThan(ctx, []cart.Status{cart.StatusActive, cart.StatusFailed}, abandonedCutoff)
	if err != nil {
		return n1, err
	}

	completedCutoff := now.Add(-time.Duration(s.reaper.CompletedAfterDays) * 24 * time.Hour)
	n2, err := s.carts.DeleteOlderThan(ctx, []cart.Status{cart.StatusCompleted}, completedCutoff)
	if err != nil {
		return n1 + n2, err
	}
	return n1 + n2, nil
}
