package tokenstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"OpenCollab/internal/modules/notification/domain/token"
	"OpenCollab/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ token.Store = (*RedisStore)(nil)

// RedisStore 以 key TTL 表达过期，DEL 的返回值保证单次消费
type RedisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	opts   options
}

func NewRedisStore(client *goredis.Client, prefix string, ttl time.Duration, opts ...Option) *RedisStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		opts:   buildOptions(opts),
	}
}

func (s *RedisStore) key(tok string) string {
	return s.prefix + tok
}

func (s *RedisStore) Issue(ctx context.Context, userID string) (token.ConnectionToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return token.ConnectionToken{}, errors.New("user id is empty")
	}
	tok, err := s.opts.generate()
	if err != nil {
		return token.ConnectionToken{}, err
	}
	ok, err := s.client.SetNX(ctx, s.key(tok), userID, s.ttl).Result()
	if err != nil {
		return token.ConnectionToken{}, err
	}
	if !ok {
		return token.ConnectionToken{}, errors.New("connection token collision")
	}
	return token.ConnectionToken{
		Token:     tok,
		UserId:    userID,
		ExpiresAt: s.opts.now().Add(s.ttl),
	}, nil
}

func (s *RedisStore) ValidateAndPeek(ctx context.Context, tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	userID, err := s.client.Get(ctx, s.key(tok)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			zlog.Warn("connection token lookup failed", zap.Error(err))
		}
		return "", false
	}
	return userID, userID != ""
}

func (s *RedisStore) Consume(ctx context.Context, tok string) bool {
	if tok == "" {
		return false
	}
	n, err := s.client.Del(ctx, s.key(tok)).Result()
	if err != nil {
		zlog.Warn("connection token consume failed", zap.Error(err))
		return false
	}
	return n == 1
}
