package kv

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"magpie/internal/config"
)

// MongoStore 远程键值存储（MongoDB 变体）
// 每个 key 一个文档：{_id, value, updated_at}
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore 创建 MongoDB 存储
func NewMongoStore(cfg *config.MongoConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 配置客户端选项
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	// 验证连接
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection("kv"),
	}, nil
}

// Get 批量读取
func (s *MongoStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make(map[string][]byte, len(keys))
	for cursor.Next(ctx) {
		var entry mongoEntry
		if err := cursor.Decode(&entry); err != nil {
			return nil, err
		}
		result[entry.Key] = entry.Value
	}
	return result, cursor.Err()
}

// Set 批量写入（upsert）
func (s *MongoStore) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(entries))
	now := time.Now()
	for k, v := range entries {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": k}).
			SetReplacement(mongoEntry{Key: k, Value: v, UpdatedAt: now}).
			SetUpsert(true))
	}

	_, err := s.collection.BulkWrite(ctx, writes)
	return err
}

// Remove 批量删除
func (s *MongoStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	return err
}

// Keys 列出全部 key
func (s *MongoStore) Keys(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var entry struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&entry); err != nil {
			return nil, err
		}
		keys = append(keys, entry.Key)
	}
	return keys, cursor.Err()
}

// Ping 探测可用性
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Name 后端名称
func (s *MongoStore) Name() string {
	return "mongo"
}

// Close 关闭连接
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
