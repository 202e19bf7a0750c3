package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/datamodels/cart"
	"github.com/hasan-abir/commerceproject/internal/datamodels/order"
	"github.com/hasan-abir/commerceproject/internal/datamodels/payment"
	"github.com/hasan-abir/commerceproject/internal/datamodels/product"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		if err = Migrate(db); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// Migrate 迁移全部表结构，测试里也用它建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&product.Product{},
		&cart.Cart{},
		&cart.Item{},
		&order.Order{},
		&order.Item{},
		&payment.Intent{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
