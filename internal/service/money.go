package service

import (
	"github.com/shopspring/decimal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ceil2 金额计算的每一步都向上取整到两位小数
func ceil2(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(2)
}

type pricedItem struct {
	unitPrice decimal.Decimal
	quantity  int64
}

// computeTotals 按购物车快照计算 subtotal 和含税 total
func computeTotals(items []pricedItem, taxRate decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		line := ceil2(it.unitPrice.Mul(decimal.NewFromInt(it.quantity)))
		subtotal = ceil2(subtotal.Add(line))
	}
	total = ceil2(subtotal.Add(subtotal.Mul(taxRate)))
	return subtotal, total
}

// withRowLock MySQL 下加 FOR UPDATE 行锁。
// SQLite（仅测试用）不认这个语法，靠它的单写事务串行化。
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
