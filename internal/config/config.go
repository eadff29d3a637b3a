package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Capture CaptureConfig `mapstructure:"capture"`
	Extract ExtractConfig `mapstructure:"extract"`
	KV      KVConfig      `mapstructure:"kv"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// AuthConfig 认证配置
// JWTSecret 为空时控制接口不鉴权（本地单机部署场景）
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// CaptureConfig 捕获控制器配置
type CaptureConfig struct {
	Enabled       bool          `mapstructure:"enabled"`        // 启动时是否开启捕获
	ThrottleDelay time.Duration `mapstructure:"throttle_delay"` // 两次提取之间的最小间隔
	SearchRetry   time.Duration `mapstructure:"search_retry"`   // 未找到容器时的重试间隔
}

// ExtractConfig 提取/过滤配置
// 短助手消息的长度与会话标记阈值是可调项，默认值对应当前页面家族的表现
type ExtractConfig struct {
	MinAssistantLen int  `mapstructure:"min_assistant_len"` // 助手消息最小字符数
	RequireMarkers  bool `mapstructure:"require_markers"`   // 助手消息是否必须包含会话标记
	ContinuationLen int  `mapstructure:"continuation_len"`  // 位置回退中"续写"判定的最大长度
	MinBlockWidth   int  `mapstructure:"min_block_width"`   // 可见内容块最小宽度
	MinBlockHeight  int  `mapstructure:"min_block_height"`  // 可见内容块最小高度
}

// KVConfig 键值存储配置
// Backend 为 auto 时按 redis -> mongo -> bolt 顺序探测，启动时选定一次
type KVConfig struct {
	Backend string      `mapstructure:"backend"` // auto, redis, mongo, bolt
	Budget  int64       `mapstructure:"budget"`  // 序列化总大小预算（字节）
	Redis   RedisConfig `mapstructure:"redis"`
	Mongo   MongoConfig `mapstructure:"mongo"`
	Bolt    BoltConfig  `mapstructure:"bolt"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// BoltConfig 本地 bbolt 配置
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig 导出归档配置
type ArchiveConfig struct {
	Type  string       `mapstructure:"type"` // none, local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统归档配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
}

// OSSConfig 阿里云OSS归档配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.Capture.ThrottleDelay <= 0 {
		return errors.New("capture throttle_delay must be positive")
	}

	if c.KV.Budget <= 0 {
		return errors.New("kv budget must be positive")
	}

	validBackends := map[string]bool{"auto": true, "redis": true, "mongo": true, "bolt": true}
	if !validBackends[c.KV.Backend] {
		return errors.New("invalid kv backend, must be auto/redis/mongo/bolt")
	}

	return nil
}
