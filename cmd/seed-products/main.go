package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
)

// 往空库里塞一批演示商品，方便本地联调
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	repo := mysql.NewProductRepository(db)
	ctx := context.Background()

	seeds := []struct {
		name  string
		price string
		stock int64
	}{
		{"Wireless Mouse", "22.45", 120},
		{"Mechanical Keyboard", "89.99", 45},
		{"USB-C Hub", "34.50", 80},
		{"Laptop Stand", "20.45", 60},
		{"Webcam 1080p", "49.00", 35},
		{"Noise Cancelling Headphones", "129.95", 25},
		{"Desk Lamp", "18.75", 90},
		{"Portable SSD 1TB", "104.99", 40},
		{"Phone Charger 65W", "27.30", 150},
		{"Monitor Arm", "58.20", 30},
	}

	var created int
	for _, s := range seeds {
		p := &product.Product{
			Name:     s.name,
			Price:    decimal.RequireFromString(s.price),
			Stock:    s.stock,
			IsActive: true,
		}
		if err := repo.Create(ctx, p); err != nil {
			log.Printf("failed to create %q: %v", s.name, err)
			continue
		}
		created++
		log.Printf("created product %d: %s ($%s, stock %d)", p.ID, p.Name, s.price, s.stock)
	}
	log.Printf("done, %d products created", created)
}
