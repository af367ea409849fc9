package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述远端缓存的连接参数。
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

// Redis 使用 Redis 作为缓存后端，值以 JSON 编码存储。过期完全交给
// Redis 自身的 TTL 机制处理，因此没有容量上限与后台清理。
type Redis[V any] struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis 建立连接并返回缓存实例。
func NewRedis[V any](cfg RedisConfig) (*Redis[V], error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "agentpay:cache:"
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &Redis[V]{client: client, prefix: prefix, defaultTTL: ttl}, nil
}

// Set 实现 Store 接口。
func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("编码缓存值失败: %w", err)
	}
	return r.client.Set(ctx, r.prefix+key, payload, ttl).Err()
}

// Get 实现 Store 接口。
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	payload, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("读取缓存失败: %w", err)
	}
	var value V
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, false, fmt.Errorf("解码缓存值失败: %w", err)
	}
	return value, true, nil
}

// Has 实现 Store 接口。
func (r *Redis[V]) Has(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("检查缓存失败: %w", err)
	}
	return count > 0, nil
}

// Delete 实现 Store 接口。
func (r *Redis[V]) Delete(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("删除缓存失败: %w", err)
	}
	return count > 0, nil
}

// Clear 按前缀扫描并删除全部缓存键。
func (r *Redis[V]) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("清空缓存失败: %w", err)
		}
	}
	return iter.Err()
}

// Len 返回前缀下的键数量。
func (r *Redis[V]) Len(ctx context.Context) (int, error) {
	var count int
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

// Destroy 关闭底层连接。可重复调用。
func (r *Redis[V]) Destroy() error {
	if r == nil || r.client == nil {
		return nil
	}
	err := r.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

var _ Store[string] = (*Redis[string])(nil)
