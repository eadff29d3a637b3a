package kv

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("magpie_kv")

// BoltStore 本地回退存储（bbolt 单文件）
// 远程后端探测失败时由工厂选中，语义与远程变体一致
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore 打开（或创建）本地 bbolt 数据库
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Get 批量读取
func (s *BoltStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for _, k := range keys {
			if v := b.Get([]byte(k)); v != nil {
				cp := make([]byte, len(v))
				copy(cp, v)
				result[k] = cp
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Set 批量写入（单事务）
func (s *BoltStore) Set(ctx context.Context, entries map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove 批量删除
func (s *BoltStore) Remove(ctx context.Context, keys ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys 列出全部 key
func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping 本地文件始终可用
func (s *BoltStore) Ping(ctx context.Context) error {
	return nil
}

// Name 后端名称
func (s *BoltStore) Name() string {
	return "bolt"
}

// Close 关闭数据库
func (s *BoltStore) Close() error {
	return s.db.Close()
}
