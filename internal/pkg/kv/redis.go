package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"magpie/internal/config"
)

// 所有捕获数据共用的 key 前缀，避免与同库其他数据冲突
const redisKeyPrefix = "magpie:"

// RedisStore 远程键值存储（Redis 变体）
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Get 批量读取
func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = redisKeyPrefix + k
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			result[keys[i]] = []byte(str)
		}
	}
	return result, nil
}

// Set 批量写入
func (s *RedisStore) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, redisKeyPrefix+k, v, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Remove 批量删除
func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = redisKeyPrefix + k
	}
	return s.client.Del(ctx, prefixed...).Err()
}

// Keys 列出全部 key
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(redisKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping 探测可用性
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Name 后端名称
func (s *RedisStore) Name() string {
	return "redis"
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}
