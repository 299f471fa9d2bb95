package tokenstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"OpenCollab/internal/modules/notification/domain/token"
)

var _ token.Store = (*MemoryStore)(nil)
var _ token.Purger = (*MemoryStore)(nil)

// MemoryStore 进程内凭证存储，所有操作在同一把锁下完成
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	opts    options
	entries map[string]token.ConnectionToken
}

func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryStore{
		ttl:     ttl,
		opts:    buildOptions(opts),
		entries: make(map[string]token.ConnectionToken),
	}
}

func (s *MemoryStore) Issue(_ context.Context, userID string) (token.ConnectionToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return token.ConnectionToken{}, errors.New("user id is empty")
	}
	tok, err := s.opts.generate()
	if err != nil {
		return token.ConnectionToken{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[tok]; exists {
		return token.ConnectionToken{}, errors.New("connection token collision")
	}
	ct := token.ConnectionToken{
		Token:     tok,
		UserId:    userID,
		ExpiresAt: s.opts.now().Add(s.ttl),
	}
	s.entries[tok] = ct
	return ct, nil
}

func (s *MemoryStore) ValidateAndPeek(_ context.Context, tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.entries[tok]
	if !ok {
		return "", false
	}
	if ct.Expired(s.opts.now()) {
		delete(s.entries, tok)
		return "", false
	}
	return ct.UserId, true
}

func (s *MemoryStore) Consume(_ context.Context, tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[tok]; !ok {
		return false
	}
	delete(s.entries, tok)
	return true
}

func (s *MemoryStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, ct := range s.entries {
		if ct.Expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
