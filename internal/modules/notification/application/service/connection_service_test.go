package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"OpenCollab/internal/modules/notification/domain/token"
	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/internal/modules/notification/infrastructure/tokenstore"
	"OpenCollab/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenCounter map[string]int

func (c tokenCounter) RecordDispatch(string, string)    {}
func (c tokenCounter) RecordToken(result string, n int) { c[result] += n }

type failingStore struct{ token.Store }

func (failingStore) Issue(context.Context, string) (token.ConnectionToken, error) {
	return token.ConnectionToken{}, errors.New("store down")
}

func TestConnection_IssueAdmitClaim(t *testing.T) {
	counts := tokenCounter{}
	store := tokenstore.NewMemoryStore(time.Minute, tokenstore.WithClock(fixedClock(baseTime)))
	svc := NewConnectionService(store, counts)

	res, err := svc.IssueToken(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "2026-03-01T09:01:00.000Z", res.ExpiresAt)

	for i := 0; i < 2; i++ {
		userID, err := svc.Admit(context.Background(), res.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	}

	assert.True(t, svc.Claim(context.Background(), res.Token))
	assert.False(t, svc.Claim(context.Background(), res.Token))
	_, err = svc.Admit(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	assert.Equal(t, tokenCounter{
		metrics.TokenIssued:   1,
		metrics.TokenAccepted: 2,
		metrics.TokenConsumed: 1,
		metrics.TokenRejected: 1,
	}, counts)
}

func TestConnection_IssueFailures(t *testing.T) {
	svc := NewConnectionService(failingStore{}, nil)

	_, err := svc.IssueToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = svc.IssueToken(context.Background(), " ")
	assert.ErrorIs(t, err, xerr.ErrUnauthorized)
}

func TestConnection_Credential(t *testing.T) {
	svc := NewConnectionService(tokenstore.NewMemoryStore(time.Minute), nil)

	tests := []struct {
		name    string
		query   string
		header  string
		want    string
		wantErr error
	}{
		{name: "query only", query: "abc", want: "abc"},
		{name: "header only", header: "def", want: "def"},
		{name: "neither", wantErr: ErrNoCredential},
		{name: "blank both", query: " ", header: "  ", wantErr: ErrNoCredential},
		{name: "both", query: "abc", header: "def", wantErr: ErrAmbiguousCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Credential(tt.query, tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
