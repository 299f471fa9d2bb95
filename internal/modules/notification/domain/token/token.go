package token

import (
	"context"
	"time"
)

// ConnectionToken 授权某身份建立一次实时连接的短期凭证
type ConnectionToken struct {
	Token     string    `json:"token"`
	UserId    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t ConnectionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store 连接凭证存储。
// ValidateAndPeek 只校验不消费，握手重试期间凭证仍然可用；
// Consume 在连接完全建立后调用，返回本次调用是否真正删除了凭证，
// 并发握手使用同一凭证时只有一个调用方能拿到 true。
type Store interface {
	Issue(ctx context.Context, userID string) (ConnectionToken, error)
	ValidateAndPeek(ctx context.Context, token string) (userID string, ok bool)
	Consume(ctx context.Context, token string) bool
}

// Purger 支持主动清理过期凭证的存储
type Purger interface {
	PurgeExpired(now time.Time) int
}
