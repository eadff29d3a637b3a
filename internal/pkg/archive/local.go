package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalArchive 本地文件系统归档
type LocalArchive struct {
	basePath string
}

// NewLocalArchive 创建本地归档
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	// 确保基础路径存在
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalArchive{basePath: basePath}, nil
}

// Put 写入归档文件
func (a *LocalArchive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(a.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fullPath, nil
}

// Type 归档类型
func (a *LocalArchive) Type() string {
	return "local"
}
