package server

import (
	"errors"
	"io"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/sessions"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
	"github.com/hasan-abir/commerceproject/internal/infra/mq"
	"github.com/hasan-abir/commerceproject/internal/infra/redis"
	"github.com/hasan-abir/commerceproject/internal/infra/stripegw"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
	"github.com/hasan-abir/commerceproject/internal/service"
)

// Deps 路由依赖的服务集合，测试里可以用假实现拼装
type Deps struct {
	Products product.Repository
	Carts    *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Payments *service.PaymentService
}

// BuildDeps 初始化基础设施并装配全部服务
func BuildDeps(cfg *config.Config) *Deps {
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	taxRate := decimal.RequireFromString(cfg.Checkout.TaxRate)

	productRepo := mysql.NewProductRepository(db)
	cartRepo := mysql.NewCartRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)

	idem := service.NewIdempotencyService(redisClient, &cfg.Idempotency)
	publisher := mq.NewPublisher(mqConn, cfg.Checkout.FulfillmentQueue)

	return &Deps{
		Products: productRepo,
		Carts:    service.NewCartService(db, cartRepo, productRepo, taxRate, &cfg.Reaper),
		Checkout: service.NewCheckoutService(db, cartRepo, idem, publisher),
		Orders:   service.NewOrderService(orderRepo),
		Payments: service.NewPaymentService(paymentRepo, idem, stripegw.Init(&cfg.Stripe), cfg.Stripe.Currency),
	}
}

// RegisterRoutes 注册全部 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config, d *Deps) {
	sess := sessions.New(sessions.Config{
		Cookie:       cfg.Session.CookieName,
		Expires:      cfg.Session.Expires(),
		AllowReclaim: true,
	})
	app.Use(sess.Handler())

	api := app.Party("/api")

	// 健康检查 + 监控快照
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"msg": "ok", "stats": service.GetMonitor().Stats()})
	})

	// 商品只读
	api.Get("/products", func(ctx iris.Context) {
		list, err := d.Products.ListActive(ctx.Request().Context())
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(list)
	})
	api.Get("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := d.Products.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(p)
	})

	// 当前购物车：没有就发新的；旧车已进终态时换新会话再发
	api.Get("/carts", func(ctx iris.Context) {
		rc := ctx.Request().Context()
		s := sessions.Get(ctx)

		c, err := d.Carts.IssueCart(rc, s.ID())
		if errors.Is(err, service.ErrCartClosed) {
			sess.Destroy(ctx)
			s = sess.Start(ctx)
			c, err = d.Carts.IssueCart(rc, s.ID())
		}
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		view, err := d.Carts.BuildView(rc, c)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(view)
	})

	// 加购（需要幂等键）
	api.Post("/cartitems", func(ctx iris.Context) {
		var in service.AddItemInput
		if err := ctx.ReadJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
			return
		}
		it, err := d.Checkout.AddItem(
			ctx.Request().Context(),
			sessions.Get(ctx).ID(),
			ctx.GetHeader("Idempotency-Key"),
			in,
		)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(it)
	})

	// 修改条目数量（PUT/PATCH 同语义，都只认 quantity）
	updateItem := func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var in struct {
			Quantity int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
			return
		}
		it, err := d.Carts.UpdateItemQuantity(ctx.Request().Context(), sessions.Get(ctx).ID(), id, in.Quantity)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(it)
	}
	api.Put("/cartitems/{id:int64}", updateItem)
	api.Patch("/cartitems/{id:int64}", updateItem)

	api.Delete("/cartitems/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := d.Carts.RemoveItem(ctx.Request().Context(), sessions.Get(ctx).ID(), id); err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.StatusCode(iris.StatusNoContent)
	})

	// 下单（需要幂等键），受理即返回，履约异步完成
	api.Post("/orders", func(ctx iris.Context) {
		var data service.OrderData
		if err := ctx.ReadJSON(&data); err != nil && !errors.Is(err, io.EOF) {
			ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
			return
		}
		err := d.Checkout.PlaceOrder(
			ctx.Request().Context(),
			sessions.Get(ctx).ID(),
			ctx.GetHeader("Idempotency-Key"),
			data,
		)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"msg": "Success! We've accepted your order request and are dispatching the products now."})
	})

	// 订单只读快照
	api.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := d.Orders.GetOrder(ctx.Request().Context(), id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(o)
	})
	api.Get("/orderitems/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		it, err := d.Orders.GetOrderItem(ctx.Request().Context(), id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(it)
	})

	// 创建支付意向（需要幂等键）
	api.Post("/payments", func(ctx iris.Context) {
		var in struct {
			Total decimal.Decimal `json:"total"`
		}
		if err := ctx.ReadJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
			return
		}
		secret, err := d.Payments.CreateIntent(
			ctx.Request().Context(),
			sessions.Get(ctx).ID(),
			ctx.GetHeader("Idempotency-Key"),
			in.Total,
		)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"clientSecret": secret})
	})

	// 支付确认回调：向网关拉取结果并更新本地记录
	app.Post("/payment-confirm", func(ctx iris.Context) {
		var in struct {
			PaymentIntentID string `json:"payment_intent_id"`
		}
		if err := ctx.ReadJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
			return
		}
		intent, err := d.Payments.Confirm(ctx.Request().Context(), in.PaymentIntentID)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.JSON(intent)
	})
}

// writeServiceError 服务层错误到状态码和 {msg}/字段错误体的统一映射
func writeServiceError(ctx iris.Context, err error) {
	var (
		verr     *service.ValidationError
		shortage *service.StockShortageError
		procErr  *service.ProcessorError
	)
	switch {
	case errors.Is(err, service.ErrSessionRequired),
		errors.Is(err, service.ErrMissingIdempotencyKey),
		errors.Is(err, service.ErrNoCartItems):
		ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": err.Error()})
	case errors.Is(err, service.ErrDuplicateRequest):
		ctx.StopWithJSON(iris.StatusConflict, iris.Map{"msg": err.Error()})
	case errors.As(err, &shortage):
		ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"msg": shortage.Error()})
	case errors.As(err, &verr):
		body := iris.Map{}
		for field, msg := range verr.Fields {
			body[field] = msg
		}
		ctx.StopWithJSON(iris.StatusBadRequest, body)
	case errors.As(err, &procErr):
		ctx.StopWithJSON(iris.StatusForbidden, iris.Map{"msg": "Payment processor rejected the request."})
	case errors.Is(err, service.ErrPaymentIntentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		ctx.StopWithJSON(iris.StatusNotFound, iris.Map{"msg": "Not found."})
	default:
		// 内部错误不对外暴露细节
		zap.L().Error("request failed", zap.String("path", ctx.Path()), zap.Error(err))
		ctx.StopWithJSON(iris.StatusInternalServerError, iris.Map{"msg": "Internal server error."})
	}
}
