package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/hasan-abir/commerceproject/internal/config"
)

// 幂等键按操作类别分命名空间，TTL 不同
const (
	ClassCart    = "cart"
	ClassOrder   = "order"
	ClassPayment = "payment"

	redisIdempotencyKey = "idemp:%s:%s" // class, token
)

// IdempotencyService 幂等守卫。核心是 Redis 的 SET NX EX 原子写入，
// 不能退化成先读后写，否则两个并发请求会同时通过。
type IdempotencyService struct {
	redis radix.Client
	cfg   *config.IdempotencyConfig
}

// NewIdempotencyService 创建幂等守卫
func NewIdempotencyService(redis radix.Client, cfg *config.IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{redis: redis, cfg: cfg}
}

// Admit 尝试占用幂等键。键缺失返回 ErrMissingIdempotencyKey，
// 有效期内重复返回 ErrDuplicateRequest，占用成功返回 nil。
func (s *IdempotencyService) Admit(ctx context.Context, class, key, sessionKey string, body []byte) error {
	if key == "" {
		return ErrMissingIdempotencyKey
	}

	ttl := s.cfg.OrderTTLSeconds
	if class == ClassCart {
		ttl = s.cfg.CartTTLSeconds
	}

	sum := md5.Sum(body)
	value := sessionKey + ":" + hex.EncodeToString(sum[:])
	redisKey := fmt.Sprintf(redisIdempotencyKey, class, key)

	var resp string
	if err := s.redis.Do(radix.Cmd(&resp, "SET", redisKey, value, "NX", "EX", strconv.Itoa(ttl))); err != nil {
		GetMonitor().RecordRedisError()
		return err
	}
	if resp != "OK" {
		GetMonitor().RecordDuplicateRequest()
		return ErrDuplicateRequest
	}
	return nil
}
