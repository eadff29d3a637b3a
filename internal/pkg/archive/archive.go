package archive

import (
	"context"
	"fmt"

	"magpie/internal/config"
)

// Archive 导出归档接口
// 导出的会话 JSON 除了返回给调用方，还可以落一份到归档后端
type Archive interface {
	// Put 写入归档对象，返回可访问的 URL 或路径
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Type 归档类型（local/oss）
	Type() string
}

// New 根据配置创建归档实例，type 为 none 时返回 nil
func New(cfg *config.ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		if cfg.Local == nil {
			return nil, fmt.Errorf("local archive config is required")
		}
		return NewLocalArchive(cfg.Local.BasePath)
	case "oss":
		if cfg.OSS == nil {
			return nil, fmt.Errorf("OSS archive config is required")
		}
		return NewOSSArchive(cfg.OSS.Endpoint, cfg.OSS.Bucket, cfg.OSS.AccessKeyID, cfg.OSS.AccessKeySecret)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", cfg.Type)
	}
}
