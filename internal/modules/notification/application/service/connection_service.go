package service

import (
	"context"
	"strings"

	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/domain/token"
	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

// ConnectionService 实时通道的凭证签发与握手鉴权。
// 握手分两步：Admit 只做校验，连接建立后再 Claim 消费凭证。
type ConnectionService interface {
	IssueToken(ctx context.Context, userID string) (*respond.ConnectionTokenRespond, error)
	Credential(fromQuery, fromHeader string) (string, error)
	Admit(ctx context.Context, credential string) (string, error)
	Claim(ctx context.Context, credential string) bool
}

type connectionServiceImpl struct {
	store    token.Store
	recorder metrics.Recorder
}

func NewConnectionService(store token.Store, recorder metrics.Recorder) ConnectionService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &connectionServiceImpl{store: store, recorder: recorder}
}

func (s *connectionServiceImpl) IssueToken(ctx context.Context, userID string) (*respond.ConnectionTokenRespond, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, xerr.ErrUnauthorized
	}
	t, err := s.store.Issue(ctx, userID)
	if err != nil {
		zlog.Error("issue connection token failed", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrUnknown
	}
	s.recorder.RecordToken(metrics.TokenIssued, 1)
	res := respond.NewConnectionTokenRespond(t.Token, t.ExpiresAt)
	return &res, nil
}

// Credential 凭证可经 query 或 header 携带，必须恰好出现一处
func (s *connectionServiceImpl) Credential(fromQuery, fromHeader string) (string, error) {
	q := strings.TrimSpace(fromQuery)
	h := strings.TrimSpace(fromHeader)
	switch {
	case q == "" && h == "":
		return "", ErrNoCredential
	case q != "" && h != "":
		return "", ErrAmbiguousCredential
	case q != "":
		return q, nil
	default:
		return h, nil
	}
}

func (s *connectionServiceImpl) Admit(ctx context.Context, credential string) (string, error) {
	userID, ok := s.store.ValidateAndPeek(ctx, credential)
	if !ok {
		s.recorder.RecordToken(metrics.TokenRejected, 1)
		return "", ErrInvalidCredential
	}
	s.recorder.RecordToken(metrics.TokenAccepted, 1)
	return userID, nil
}

// Claim 返回 false 表示凭证已被并发握手消费或已过期，本次连接不得注册
func (s *connectionServiceImpl) Claim(ctx context.Context, credential string) bool {
	if !s.store.Consume(ctx, credential) {
		return false
	}
	s.recorder.RecordToken(metrics.TokenConsumed, 1)
	return true
}
