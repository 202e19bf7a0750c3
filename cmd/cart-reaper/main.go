package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/logging"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
	"github.com/hasan-abir/commerceproject/internal/service"
)

// 清理过期购物车的一次性任务，由 cron 定时拉起
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Init(false)

	db := mysql.Init(&cfg.MySQL)
	cartRepo := mysql.NewCartRepository(db)
	productRepo := mysql.NewProductRepository(db)
	taxRate := decimal.RequireFromString(cfg.Checkout.TaxRate)

	svc := service.NewCartService(db, cartRepo, productRepo, taxRate, &cfg.Reaper)

	n, err := svc.ReapAbandoned(context.Background())
	if err != nil {
		log.Fatalf("reap failed: %v", err)
	}
	log.Printf("Successfully deleted %d abandoned carts", n)
}
