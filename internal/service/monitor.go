package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，统计结算链路的错误与吞吐
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors    int64
	MQErrors       int64
	DBErrors       int64
	NotifierErrors int64

	// 业务统计
	CheckoutRequests     int64
	CheckoutAccepted     int64
	DuplicateRequests    int64
	StockShortages       int64
	FulfillmentProcessed int64
	FulfillmentFailed    int64

	// 时间统计
	LastRedisError      time.Time
	LastMQError         time.Time
	LastDBError         time.Time
	LastCheckoutTime    time.Time
	LastFulfillmentTime time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordNotifierError 记录通知发送失败（只记账，不影响订单）
func (m *Monitor) RecordNotifierError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifierErrors++
}

// RecordCheckoutRequest 记录一次下单/加购请求
func (m *Monitor) RecordCheckoutRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutRequests++
	m.LastCheckoutTime = time.Now()
}

// RecordCheckoutAccepted 记录一次成功受理
func (m *Monitor) RecordCheckoutAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutAccepted++
}

// RecordDuplicateRequest 记录一次幂等键冲突
func (m *Monitor) RecordDuplicateRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicateRequests++
}

// RecordStockShortage 记录一次库存不足
func (m *Monitor) RecordStockShortage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StockShortages++
}

// RecordFulfillmentProcessed 记录一次履约成功
func (m *Monitor) RecordFulfillmentProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FulfillmentProcessed++
	m.LastFulfillmentTime = time.Now()
}

// RecordFulfillmentFailed 记录一次履约失败
func (m *Monitor) RecordFulfillmentFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FulfillmentFailed++
	m.LastFulfillmentTime = time.Now()
}

// Stats 返回当前统计快照
func (m *Monitor) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"redis_errors":          m.RedisErrors,
		"mq_errors":             m.MQErrors,
		"db_errors":             m.DBErrors,
		"notifier_errors":       m.NotifierErrors,
		"checkout_requests":     m.CheckoutRequests,
		"checkout_accepted":     m.CheckoutAccepted,
		"duplicate_requests":    m.DuplicateRequests,
		"stock_shortages":       m.StockShortages,
		"fulfillment_processed": m.FulfillmentProcessed,
		"fulfillment_failed":    m.FulfillmentFailed,
	}
}
