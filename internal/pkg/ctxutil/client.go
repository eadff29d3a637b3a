package ctxutil

import "context"

// clientKeyType 使用私有类型避免与其他 context key 冲突
type clientKeyType struct{}

var clientKey = clientKeyType{}

// WithClient 将调用方标识注入到 context 中
// 在认证中间件里解析 JWT 成功后调用：
//
//	ctx := ctxutil.WithClient(c.Request.Context(), claims.Client)
//	c.Request = c.Request.WithContext(ctx)
func WithClient(ctx context.Context, client string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientKey, client)
}

// GetClient 从 context 中解析调用方标识
func GetClient(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v := ctx.Value(clientKey)
	client, ok := v.(string)
	if !ok || client == "" {
		return "", false
	}
	return client, true
}
