package kv

import (
	"context"
	"errors"
)

// ErrUnavailable 后端不可达
// 调用方据此降级到内存中的待写批次，等待下一次提取后重试
var ErrUnavailable = errors.New("kv: store unavailable")

// Store 异步键值存储抽象
// 每次调用对整个映射值原子生效，不提供跨调用事务
type Store interface {
	// Get 批量读取，缺失的 key 不出现在结果中
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Set 批量写入
	Set(ctx context.Context, entries map[string][]byte) error

	// Remove 批量删除，key 不存在不视为错误
	Remove(ctx context.Context, keys ...string) error

	// Keys 列出全部 key
	Keys(ctx context.Context) ([]string, error)

	// Ping 探测后端可用性
	Ping(ctx context.Context) error

	// Name 后端名称（redis/mongo/bolt）
	Name() string

	// Close 释放连接
	Close() error
}
