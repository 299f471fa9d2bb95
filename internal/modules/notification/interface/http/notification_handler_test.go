package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"OpenCollab/internal/middleware/jwt"
	"OpenCollab/internal/modules/notification/application/dto/request"
	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/application/service"
	"OpenCollab/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCommand struct {
	CreateFunc      func(request.CreateNotificationRequest) (*respond.NotificationItem, error)
	MarkReadFunc    func(request.MarkReadRequest) (*respond.NotificationItem, error)
	MarkAllReadFunc func(request.MarkAllReadRequest) (*respond.MarkAllReadRespond, error)
}

func (s *stubCommand) Create(_ context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error) {
	return s.CreateFunc(req)
}

func (s *stubCommand) MarkRead(_ context.Context, req request.MarkReadRequest) (*respond.NotificationItem, error) {
	return s.MarkReadFunc(req)
}

func (s *stubCommand) MarkAllRead(_ context.Context, req request.MarkAllReadRequest) (*respond.MarkAllReadRespond, error) {
	return s.MarkAllReadFunc(req)
}

type stubQuery struct {
	ListUnreadFunc func(request.ListUnreadRequest) ([]respond.NotificationItem, error)
}

func (s *stubQuery) ListUnread(_ context.Context, req request.ListUnreadRequest) ([]respond.NotificationItem, error) {
	return s.ListUnreadFunc(req)
}

type stubConnection struct {
	service.ConnectionService
	issued []string
}

func (s *stubConnection) IssueToken(_ context.Context, userID string) (*respond.ConnectionTokenRespond, error) {
	s.issued = append(s.issued, userID)
	return &respond.ConnectionTokenRespond{Token: "tok", ExpiresAt: "2026-03-01T09:01:00.000Z"}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(h *NotificationHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rg := r.Group("/", func(c *gin.Context) {
		if userID != "" {
			c.Set(jwt.ContextUserKey, userID)
		}
		c.Next()
	})
	h.Register(rg)
	return r
}

func do(t *testing.T, r *gin.Engine, path, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestNotificationHandler_Create(t *testing.T) {
	var got request.CreateNotificationRequest
	cmd := &stubCommand{CreateFunc: func(req request.CreateNotificationRequest) (*respond.NotificationItem, error) {
		got = req
		return &respond.NotificationItem{Id: "n1", RecipientId: req.RecipientId, Type: req.Type}, nil
	}}
	r := newRouter(NewNotificationHandler(cmd, &stubQuery{}, &stubConnection{}), "u9")

	env := do(t, r, "/notification/create", `{"recipient_id":"u1","type":"project.created","payload":{"a":1},"channels":["realtime"]}`)
	assert.Equal(t, xerr.OK, env.Code)
	assert.JSONEq(t, `{"id":"n1","recipient_id":"u1","sender_id":null,"type":"project.created","payload":null,"created_at":"","read_at":null}`, string(env.Data))
	assert.Equal(t, "u1", got.RecipientId)
	assert.Equal(t, []string{"realtime"}, got.Channels)
	assert.Equal(t, "u9", got.SenderId)

	do(t, r, "/notification/create", `{"recipient_id":"u1","sender_id":"u2","type":"project.created","payload":{"a":1}}`)
	assert.Equal(t, "u9", got.SenderId)

	env = do(t, r, "/notification/create", `{"recipient_id":`)
	assert.Equal(t, xerr.BadRequest, env.Code)
}

func TestNotificationHandler_MarkReadUsesCaller(t *testing.T) {
	var got request.MarkReadRequest
	cmd := &stubCommand{MarkReadFunc: func(req request.MarkReadRequest) (*respond.NotificationItem, error) {
		got = req
		return nil, service.ErrNotOwner
	}}
	r := newRouter(NewNotificationHandler(cmd, &stubQuery{}, &stubConnection{}), "u1")

	env := do(t, r, "/notification/markRead", `{"notification_id":"n1","owner_id":"u2"}`)
	assert.Equal(t, xerr.Forbidden, env.Code)
	assert.Equal(t, service.ErrNotOwner.Message, env.Message)
	assert.Equal(t, request.MarkReadRequest{OwnerId: "u1", NotificationId: "n1"}, got)
}

func TestNotificationHandler_ListUnreadAndMarkAll(t *testing.T) {
	qry := &stubQuery{ListUnreadFunc: func(req request.ListUnreadRequest) ([]respond.NotificationItem, error) {
		assert.Equal(t, "u1", req.OwnerId)
		return []respond.NotificationItem{}, nil
	}}
	cmd := &stubCommand{MarkAllReadFunc: func(req request.MarkAllReadRequest) (*respond.MarkAllReadRespond, error) {
		return &respond.MarkAllReadRespond{Count: 3}, nil
	}}
	r := newRouter(NewNotificationHandler(cmd, qry, &stubConnection{}), "u1")

	env := do(t, r, "/notification/listUnread", `{}`)
	assert.Equal(t, xerr.OK, env.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	env = do(t, r, "/notification/markAllRead", `{}`)
	assert.Equal(t, xerr.OK, env.Code)
	assert.JSONEq(t, `{"count":3}`, string(env.Data))
}

func TestNotificationHandler_ConnectionToken(t *testing.T) {
	conn := &stubConnection{}
	r := newRouter(NewNotificationHandler(&stubCommand{}, &stubQuery{}, conn), "u1")

	env := do(t, r, "/notification/connectionToken", ``)
	assert.Equal(t, xerr.OK, env.Code)
	assert.JSONEq(t, `{"token":"tok","expires_at":"2026-03-01T09:01:00.000Z"}`, string(env.Data))
	assert.Equal(t, []string{"u1"}, conn.issued)
}

func TestNotificationHandler_RequiresCaller(t *testing.T) {
	r := newRouter(NewNotificationHandler(&stubCommand{}, &stubQuery{}, &stubConnection{}), "")

	for _, path := range []string{"/notification/create", "/notification/listUnread", "/notification/markRead", "/notification/markAllRead", "/notification/connectionToken"} {
		env := do(t, r, path, `{}`)
		assert.Equal(t, xerr.Unauthorized, env.Code, path)
	}
}
