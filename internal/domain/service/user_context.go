package service

import (
	"context"
	"strings"
)

type userCtxKey struct{}

// WithUserID 将认证后的用户 ID 注入上下文
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		return nil
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userCtxKey{}, id)
}

// UserIDFromContext 从上下文提取用户 ID，缺失时返回空串
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, ok := ctx.Value(userCtxKey{}).(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
