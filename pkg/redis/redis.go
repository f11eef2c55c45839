package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
)

// Client Redis 客户端封装
// 当前用于资格快照缓存与接口限流；后续可扩展分布式锁等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 资格快照缓存 ──

const eligibilityPrefix = "eligibility:snapshot:"

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")

// GetEligibilitySnapshot 读取顾问资格快照（JSON 字节）
func (c *Client) GetEligibilitySnapshot(ctx context.Context, consultantID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, eligibilityPrefix+consultantID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

// SetEligibilitySnapshot 写入顾问资格快照，TTL 到期后强制重算
func (c *Client) SetEligibilitySnapshot(ctx context.Context, consultantID string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, eligibilityPrefix+consultantID, data, ttl).Err()
}

// InvalidateEligibility 显式失效快照（上游凭据变更钩子调用）
func (c *Client) InvalidateEligibility(ctx context.Context, consultantID string) error {
	return c.rdb.Del(ctx, eligibilityPrefix+consultantID).Err()
}

// ── 接口限流 ──

// CheckRateLimit 固定窗口限流：窗口内计数超过 limit 则拒绝
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
