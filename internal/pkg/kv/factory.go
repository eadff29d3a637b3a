package kv

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"magpie/internal/config"
)

// Open 根据配置创建存储实例
// backend 为 auto 时按 redis -> mongo -> bolt 顺序做一次能力探测，
// 选定后不再按调用重新判断
func Open(ctx context.Context, cfg *config.KVConfig) (Store, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(&cfg.Redis)
	case "mongo":
		return NewMongoStore(&cfg.Mongo)
	case "bolt":
		return NewBoltStore(cfg.Bolt.Path)
	case "auto":
		return probe(cfg)
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", cfg.Backend)
	}
}

func probe(cfg *config.KVConfig) (Store, error) {
	if cfg.Redis.Addr != "" {
		if s, err := NewRedisStore(&cfg.Redis); err == nil {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis kv store")
			return s, nil
		} else {
			log.Warn().Err(err).Msg("redis not reachable, trying next backend")
		}
	}

	if cfg.Mongo.URI != "" {
		if s, err := NewMongoStore(&cfg.Mongo); err == nil {
			log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo kv store")
			return s, nil
		} else {
			log.Warn().Err(err).Msg("mongo not reachable, trying next backend")
		}
	}

	s, err := NewBoltStore(cfg.Bolt.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local fallback store: %w", err)
	}
	log.Info().Str("path", cfg.Bolt.Path).Msg("using local bolt kv store")
	return s, nil
}
