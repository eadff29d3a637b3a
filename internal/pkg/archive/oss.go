package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSArchive 阿里云OSS归档
type OSSArchive struct {
	bucket     *oss.Bucket
	bucketName string
}

// NewOSSArchive 创建阿里云OSS归档
func NewOSSArchive(endpoint, bucketName, accessKeyID, accessKeySecret string) (*OSSArchive, error) {
	// 创建OSS客户端
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	// 获取Bucket
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSArchive{
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

// Put 上传归档对象
func (a *OSSArchive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	options := []oss.Option{
		oss.ContentType(contentType),
	}

	if err := a.bucket.PutObject(key, bytes.NewReader(data), options...); err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	url := fmt.Sprintf("https://%s.%s/%s", a.bucketName, a.bucket.Client.Config.Endpoint, key)
	return url, nil
}

// Type 归档类型
func (a *OSSArchive) Type() string {
	return "oss"
}
