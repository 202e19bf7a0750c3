package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	radix "github.com/mediocregopher/radix/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
)

// newTestDB 每个测试一个独立的内存库，表结构和生产迁移保持一致
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, mysql.Migrate(db))
	return db
}

// stubRedis 内存版 SET NX：同一个键第二次写入返回 nil 回复
func stubRedis() radix.Client {
	store := map[string]bool{}
	return radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		if len(args) > 1 && args[0] == "SET" {
			if store[args[1]] {
				return nil
			}
			store[args[1]] = true
			return "OK"
		}
		return nil
	})
}

func newIdem() *IdempotencyService {
	return NewIdempotencyService(stubRedis(), &config.IdempotencyConfig{
		CartTTLSeconds:  30,
		OrderTTLSeconds: 3600,
	})
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int64) *product.Product {
	t.Helper()
	p := &product.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedCart(t *testing.T, db *gorm.DB, sessionKey string, status cart.Status) *cart.Cart {
	t.Helper()
	c := &cart.Cart{SessionKey: sessionKey, Status: status}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedCartItem(t *testing.T, db *gorm.DB, cartID, productID, quantity int64) *cart.Item {
	t.Helper()
	it := &cart.Item{CartID: cartID, ProductID: productID, Quantity: quantity}
	require.NoError(t, db.Create(it).Error)
	return it
}

// fakePublisher 只记录投递内容
type fakePublisher struct {
	published [][]byte
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

// fakeNotifier 只记录发出的通知
type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, recipient, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, fmt.Sprintf("%s|%s", recipient, subject))
	return nil
}

// fakeProcessor 假支付网关
type fakeProcessor struct {
	status    string
	methodID  string
	createErr error
	statusErr error
	calls     int
}

func (f *fakeProcessor) CreateIntent(_ context.Context, amount decimal.Decimal, currency string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	f.calls++
	id := fmt.Sprintf("pi_test_%d", f.calls)
	return id, id + "_secret", nil
}

func (f *fakeProcessor) IntentStatus(_ context.Context, intentID string) (string, string, error) {
	if f.statusErr != nil {
		return "", "", f.statusErr
	}
	return f.status, f.methodID, nil
}

func validOrderData() OrderData {
	return OrderData{
		ContactEmail:         "buyer@example.com",
		ShippingAddressLine1: "1 Main St",
		ShippingCity:         "Springfield",
		ShippingCountry:      "US",
		ShippingZip:          "12345",
	}
}
