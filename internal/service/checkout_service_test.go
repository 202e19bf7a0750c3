package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
)

func newCheckout(t *testing.T, db *gorm.DB) (*CheckoutService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	return NewCheckoutService(db, mysql.NewCartRepository(db), newIdem(), pub), pub
}

func TestAddItem(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	c := seedCart(t, db, "sess-1", cart.StatusActive)

	it, err := svc.AddItem(ctx, "sess-1", uuid.NewString(), AddItemInput{Product: p.ID, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, c.ID, it.CartID)
	require.Equal(t, int64(4), it.Quantity)

	var got product.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, int64(6), got.Stock, "stock reserved on add")
}

func TestAddItemRequiresCartBeforeIdempotencyKey(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	// 没有购物车也没有幂等键：先报会话错误
	_, err := svc.AddItem(context.Background(), "sess-1", "", AddItemInput{Product: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestAddItemMissingIdempotencyKey(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	seedCart(t, db, "sess-1", cart.StatusActive)

	_, err := svc.AddItem(context.Background(), "sess-1", "", AddItemInput{Product: p.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestAddItemDuplicateIdempotencyKey(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	seedCart(t, db, "sess-1", cart.StatusActive)

	key := uuid.NewString()
	_, err := svc.AddItem(ctx, "sess-1", key, AddItemInput{Product: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "sess-1", key, AddItemInput{Product: p.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestAddItemQuantityTooLow(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	seedCart(t, db, "sess-1", cart.StatusActive)

	_, err := svc.AddItem(context.Background(), "sess-1", uuid.NewString(), AddItemInput{Product: p.ID, Quantity: 0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "Ensure this value is greater than or equal to 1.", verr.Fields["quantity"])
}

func TestAddItemUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	seedCart(t, db, "sess-1", cart.StatusActive)

	_, err := svc.AddItem(context.Background(), "sess-1", uuid.NewString(), AddItemInput{Product: 999, Quantity: 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "Invalid product - Object does not exist.", verr.Fields["product"])
}

func TestAddItemDuplicateProductInCart(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	seedCart(t, db, "sess-1", cart.StatusActive)

	_, err := svc.AddItem(ctx, "sess-1", uuid.NewString(), AddItemInput{Product: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "sess-1", uuid.NewString(), AddItemInput{Product: p.ID, Quantity: 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "The fields cart, product must make a unique set.", verr.Fields["product"])
}

func TestAddItemStockShortage(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 3)
	seedCart(t, db, "sess-1", cart.StatusActive)

	_, err := svc.AddItem(context.Background(), "sess-1", uuid.NewString(), AddItemInput{Product: p.ID, Quantity: 5})
	var shortage *StockShortageError
	require.ErrorAs(t, err, &shortage)
	require.Equal(t, "Wireless Mouse: Out of stock", shortage.Error())

	// 事务回滚，库存不动、条目没落库
	var got product.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, int64(3), got.Stock)
	var count int64
	require.NoError(t, db.Model(&cart.Item{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPlaceOrder(t *testing.T) {
	db := newTestDB(t)
	svc, pub := newCheckout(t, db)
	ctx := context.Background()

	p1 := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	p2 := seedProduct(t, db, "Laptop Stand", "20.45", 10)
	c := seedCart(t, db, "sess-1", cart.StatusActive)
	seedCartItem(t, db, c.ID, p1.ID, 4)
	seedCartItem(t, db, c.ID, p2.ID, 2)

	require.NoError(t, svc.PlaceOrder(ctx, "sess-1", uuid.NewString(), validOrderData()))

	// 库存已扣、购物车转 PROCESSING
	var got product.Product
	require.NoError(t, db.First(&got, p1.ID).Error)
	require.Equal(t, int64(6), got.Stock)
	require.NoError(t, db.First(&got, p2.ID).Error)
	require.Equal(t, int64(8), got.Stock)

	var gotCart cart.Cart
	require.NoError(t, db.First(&gotCart, c.ID).Error)
	require.Equal(t, cart.StatusProcessing, gotCart.Status)

	// 履约消息带上会话键和收货信息
	require.Len(t, pub.published, 1)
	var msg FulfillmentMessage
	require.NoError(t, json.Unmarshal(pub.published[0], &msg))
	require.Equal(t, "sess-1", msg.SessionKey)
	require.Equal(t, "buyer@example.com", msg.ContactEmail)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	seedCart(t, db, "sess-1", cart.StatusActive)

	err := svc.PlaceOrder(context.Background(), "sess-1", uuid.NewString(), validOrderData())
	require.ErrorIs(t, err, ErrNoCartItems)
}

func TestPlaceOrderValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCheckout(t, db)

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	c := seedCart(t, db, "sess-1", cart.StatusActive)
	seedCartItem(t, db, c.ID, p.ID, 1)

	data := OrderData{ContactEmail: "not-an-email"}
	err := svc.PlaceOrder(context.Background(), "sess-1", uuid.NewString(), data)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "Enter a valid email address.", verr.Fields["contact_email"])
	require.Equal(t, "This field is required.", verr.Fields["shipping_city"])
	require.Equal(t, "This field is required.", verr.Fields["shipping_zip"])
}

func TestPlaceOrderStockShortageRollsBackAndDropsItem(t *testing.T) {
	db := newTestDB(t)
	svc, pub := newCheckout(t, db)

	p1 := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	p2 := seedProduct(t, db, "Laptop Stand", "20.45", 1)
	c := seedCart(t, db, "sess-1", cart.StatusActive)
	it1 := seedCartItem(t, db, c.ID, p1.ID, 4)
	it2 := seedCartItem(t, db, c.ID, p2.ID, 2)

	err := svc.PlaceOrder(context.Background(), "sess-1", uuid.NewString(), validOrderData())
	var shortage *StockShortageError
	require.ErrorAs(t, err, &shortage)

	// 第一个商品的扣减随事务回滚
	var got product.Product
	require.NoError(t, db.First(&got, p1.ID).Error)
	require.Equal(t, int64(10), got.Stock)

	// 缺货条目被移出购物车，其余条目保留
	require.ErrorIs(t, db.First(&cart.Item{}, it2.ID).Error, gorm.ErrRecordNotFound)
	require.NoError(t, db.First(&cart.Item{}, it1.ID).Error)

	// 购物车还是 ACTIVE，可以修正后重试
	var gotCart cart.Cart
	require.NoError(t, db.First(&gotCart, c.ID).Error)
	require.Equal(t, cart.StatusActive, gotCart.Status)
	require.Empty(t, pub.published)
}

// serializeConns 限制连接池为单连接：内存 sqlite 没有行锁，
// 并发写事务会直接报 busy，单连接让事务在池层面排队提交
func serializeConns(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
}

func TestAddItemConcurrentReservations(t *testing.T) {
	db := newTestDB(t)
	serializeConns(t, db)
	svc, _ := newCheckout(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 5)

	const workers = 20
	for i := 0; i < workers; i++ {
		seedCart(t, db, fmt.Sprintf("sess-%d", i), cart.StatusActive)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddItem(ctx, fmt.Sprintf("sess-%d", i), uuid.NewString(),
				AddItemInput{Product: p.ID, Quantity: 1})

			mu.Lock()
			defer mu.Unlock()
			var shortage *StockShortageError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &shortage):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// 库存 5、20 个并发请求各要 1：恰好 5 个成功，其余看到缺货
	require.Equal(t, 5, succeeded)
	require.Equal(t, workers-5, short)

	var got product.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.GreaterOrEqual(t, got.Stock, int64(0))
	require.Equal(t, int64(0), got.Stock)
}

func TestPlaceOrderConcurrentCompetingCarts(t *testing.T) {
	db := newTestDB(t)
	serializeConns(t, db)
	svc, _ := newCheckout(t, db)
	ctx := context.Background()

	// 两个购物车抢同一个商品：库存 4，各要 3，只有一个能赢
	p := seedProduct(t, db, "Wireless Mouse", "22.45", 4)
	c1 := seedCart(t, db, "sess-1", cart.StatusActive)
	c2 := seedCart(t, db, "sess-2", cart.StatusActive)
	seedCartItem(t, db, c1.ID, p.ID, 3)
	seedCartItem(t, db, c2.ID, p.ID, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, sess := range []string{"sess-1", "sess-2"} {
		wg.Add(1)
		go func(i int, sess string) {
			defer wg.Done()
			errs[i] = svc.PlaceOrder(ctx, sess, uuid.NewString(), validOrderData())
		}(i, sess)
	}
	wg.Wait()

	var won, short int
	for _, err := range errs {
		var shortage *StockShortageError
		switch {
		case err == nil:
			won++
		case errors.As(err, &shortage):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, short)

	// 赢家扣 3，输家的预留随事务回滚
	var got product.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, int64(1), got.Stock)
	require.GreaterOrEqual(t, got.Stock, int64(0))
}

func TestPlaceOrderPublishFailure(t *testing.T) {
	db := newTestDB(t)
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewCheckoutService(db, mysql.NewCartRepository(db), newIdem(), pub)

	p := seedProduct(t, db, "Wireless Mouse", "22.45", 10)
	c := seedCart(t, db, "sess-1", cart.StatusActive)
	seedCartItem(t, db, c.ID, p.ID, 1)

	err := svc.PlaceOrder(context.Background(), "sess-1", uuid.NewString(), validOrderData())
	require.Error(t, err)

	// 库存已预留、购物车已是 PROCESSING，由滞留清理兜底降级
	var gotCart cart.Cart
	require.NoError(t, db.First(&gotCart, c.ID).Error)
	require.Equal(t, cart.StatusProcessing, gotCart.Status)
}
