package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 面向调用方的错误文案直接放在错误里，路由层只负责映射状态码
var (
	// ErrSessionRequired 会话没有可用的 ACTIVE 购物车
	ErrSessionRequired = errors.New("Create your cart first.")
	// ErrMissingIdempotencyKey 请求头缺少幂等键
	ErrMissingIdempotencyKey = errors.New("Specify a 'Idempotency-Key' attribute in the headers with a UUID")
	// ErrDuplicateRequest 幂等键在有效期内重复出现
	ErrDuplicateRequest = errors.New("Duplicate request detected")
	// ErrNoCartItems 购物车为空不能下单
	ErrNoCartItems = errors.New("Add items to your cart first.")
	// ErrCartClosed 购物车已进入终态，会话需要换新
	ErrCartClosed = errors.New("cart already closed")
)

// StockShortageError 库存不足，带上商品名方便提示
type StockShortageError struct {
	ProductName string
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("%s: Out of stock", e.ProductName)
}

// ValidationError 字段级校验错误，key 为字段名
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
