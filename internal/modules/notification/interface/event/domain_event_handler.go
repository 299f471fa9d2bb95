package event

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"OpenCollab/internal/modules/notification/application/dto/request"
	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/application/service"
	"OpenCollab/internal/modules/notification/infrastructure/dedupe"
	"OpenCollab/internal/modules/notification/infrastructure/mq"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

// 领域事件类型，同时作为生成通知的 type
const (
	RoleApplicationCreated  = "project.role.application.created"
	RoleApplicationAccepted = "project.role.application.accepted"
	RoleApplicationRejected = "project.role.application.rejected"
	ProjectCreated          = "project.created"
	ProjectUpdated          = "project.updated"
	ProjectDeleted          = "project.deleted"
)

// Envelope 领域事件总线上的消息结构
type Envelope struct {
	Id         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type roleApplicationData struct {
	ApplicationId string `json:"application_id"`
	ProjectId     string `json:"project_id"`
	ProjectName   string `json:"project_name"`
	Role          string `json:"role"`
	ApplicantId   string `json:"applicant_id"`
	OwnerId       string `json:"owner_id"`
}

type projectData struct {
	ProjectId   string   `json:"project_id"`
	ProjectName string   `json:"project_name"`
	OwnerId     string   `json:"owner_id"`
	MemberIds   []string `json:"member_ids"`
}

// Creator 事件最终落到命令服务的 Create
type Creator interface {
	Create(ctx context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error)
}

// Deduper 记录已为某个收件人生成过通知的事件，重投时跳过
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// DomainEventHandler 把业务领域事件翻译为通知创建命令
type DomainEventHandler struct {
	creator Creator
	dedupe  Deduper
}

type Option func(*DomainEventHandler)

func WithDeduper(d Deduper) Option {
	return func(h *DomainEventHandler) {
		if d != nil {
			h.dedupe = d
		}
	}
}

func NewDomainEventHandler(creator Creator, opts ...Option) *DomainEventHandler {
	h := &DomainEventHandler{
		creator: creator,
		dedupe:  dedupe.NewMemoryDeduper(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ mq.Handler = (*DomainEventHandler)(nil)

// Handle 只有服务端错误才返回给消费者重试；格式错误与未知类型直接确认
func (h *DomainEventHandler) Handle(ctx context.Context, msg mq.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || strings.TrimSpace(env.Type) == "" {
		zlog.Warn("drop malformed domain event", zap.String("topic", msg.Topic), zap.ByteString("value", msg.Value), zap.Error(err))
		return nil
	}

	reqs, err := h.translate(env)
	if err != nil {
		zlog.Warn("drop malformed domain event", zap.String("type", env.Type), zap.Error(err))
		return nil
	}
	if reqs == nil {
		zlog.Debug("skip unhandled domain event", zap.String("type", env.Type))
		return nil
	}

	eventKey := env.Id
	if eventKey == "" {
		sum := sha256.Sum256(msg.Value)
		eventKey = hex.EncodeToString(sum[:])
	}

	var retry error
	for _, req := range reqs {
		key := eventKey + ":" + req.RecipientId
		if seen, err := h.dedupe.Seen(ctx, key); err != nil {
			zlog.Warn("domain event dedupe lookup failed", zap.String("key", key), zap.Error(err))
		} else if seen {
			zlog.Debug("skip redelivered domain event", zap.String("type", env.Type), zap.String("recipient_id", req.RecipientId))
			continue
		}

		_, err := h.creator.Create(ctx, req)
		if err != nil && retryable(err) {
			retry = errors.Join(retry, err)
			zlog.Warn("notification from domain event failed",
				zap.String("type", env.Type),
				zap.String("recipient_id", req.RecipientId),
				zap.Error(err))
			continue
		}
		if err != nil {
			zlog.Warn("notification from domain event failed",
				zap.String("type", env.Type),
				zap.String("recipient_id", req.RecipientId),
				zap.Error(err))
		}
		// 已落库或不可重试的收件人都不再重复处理
		if err := h.dedupe.Remember(ctx, key); err != nil {
			zlog.Warn("domain event dedupe record failed", zap.String("key", key), zap.Error(err))
		}
	}
	return retry
}

func (h *DomainEventHandler) translate(env Envelope) ([]request.CreateNotificationRequest, error) {
	switch env.Type {
	case RoleApplicationCreated, RoleApplicationAccepted, RoleApplicationRejected:
		var d roleApplicationData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		payload := map[string]interface{}{
			"application_id": d.ApplicationId,
			"project_id":     d.ProjectId,
			"project_name":   d.ProjectName,
			"role":           d.Role,
		}
		if env.Type == RoleApplicationCreated {
			// 申请提交通知项目所有者
			return []request.CreateNotificationRequest{newRequest(d.OwnerId, d.ApplicantId, env.Type, payload)}, nil
		}
		return []request.CreateNotificationRequest{newRequest(d.ApplicantId, d.OwnerId, env.Type, payload)}, nil

	case ProjectCreated, ProjectUpdated, ProjectDeleted:
		var d projectData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		payload := map[string]interface{}{
			"project_id":   d.ProjectId,
			"project_name": d.ProjectName,
		}
		if env.Type == ProjectCreated {
			return []request.CreateNotificationRequest{newRequest(d.OwnerId, "", env.Type, payload)}, nil
		}
		reqs := make([]request.CreateNotificationRequest, 0, len(d.MemberIds))
		seen := make(map[string]struct{}, len(d.MemberIds))
		for _, id := range d.MemberIds {
			if _, dup := seen[id]; dup || strings.TrimSpace(id) == "" {
				continue
			}
			seen[id] = struct{}{}
			reqs = append(reqs, newRequest(id, d.OwnerId, env.Type, payload))
		}
		return reqs, nil
	}
	return nil, nil
}

func newRequest(recipient, sender, typ string, payload map[string]interface{}) request.CreateNotificationRequest {
	return request.CreateNotificationRequest{
		RecipientId: recipient,
		SenderId:    sender,
		Type:        typ,
		Payload:     payload,
	}
}

// retryable 仅存储类的服务端错误值得重投；校验失败与已落库但推送失败都不重试
func retryable(err error) bool {
	ce, ok := xerr.As(err)
	if !ok {
		return true
	}
	return ce.Code == service.ErrUnknown.Code
}
