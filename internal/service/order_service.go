package service

import (
	"context"

	"github.com/hasan-abir/commerceproject/internal/datamodels/order"
)

// OrderService 订单只读查询，订单创建只发生在履约事务里
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// GetOrder 查询订单快照
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetOrderItem 查询订单条目快照
func (s *OrderService) GetOrderItem(ctx context.Context, id int64) (*order.Item, error) {
	return s.repo.GetItemByID(ctx, id)
}
