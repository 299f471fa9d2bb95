package service

import (
	"context"
	"strings"
	"time"

	"OpenCollab/internal/modules/notification/application/dto/request"
	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/domain/entity"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

// NotificationCommandService 命令入口：先用领域实体校验，再委托 LifecycleService
type NotificationCommandService interface {
	Create(ctx context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error)
	MarkRead(ctx context.Context, req request.MarkReadRequest) (*respond.NotificationItem, error)
	MarkAllRead(ctx context.Context, req request.MarkAllReadRequest) (*respond.MarkAllReadRespond, error)
}

type notificationCommandServiceImpl struct {
	lifecycle LifecycleService
	now       func() time.Time
}

func NewNotificationCommandService(lifecycle LifecycleService, now func() time.Time) NotificationCommandService {
	if now == nil {
		now = time.Now
	}
	return &notificationCommandServiceImpl{lifecycle: lifecycle, now: now}
}

func (s *notificationCommandServiceImpl) Create(ctx context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error) {
	n, err := entity.NewNotification(entity.CreateParams{
		RecipientId: req.RecipientId,
		SenderId:    req.SenderId,
		Type:        req.Type,
		Payload:     req.Payload,
	}, s.now())
	if err != nil {
		return nil, validationError(err)
	}
	return s.lifecycle.Send(ctx, n, req.Channels)
}

func (s *notificationCommandServiceImpl) MarkRead(ctx context.Context, req request.MarkReadRequest) (*respond.NotificationItem, error) {
	if strings.TrimSpace(req.OwnerId) == "" || strings.TrimSpace(req.NotificationId) == "" {
		return nil, xerr.ErrParam
	}

	row, err := s.lifecycle.FindByID(ctx, req.NotificationId)
	if err != nil {
		return nil, err
	}
	if !row.IsOwnedBy(req.OwnerId) {
		return nil, ErrNotOwner
	}
	n, err := entity.Reconstitute(row)
	if err != nil {
		zlog.Error("reconstitute notification failed", zap.String("notification_id", row.Id), zap.Error(err))
		return nil, ErrUnknown
	}
	if n.IsRead() {
		return nil, ErrAlreadyRead
	}
	return s.lifecycle.MarkRead(ctx, n.Id)
}

func (s *notificationCommandServiceImpl) MarkAllRead(ctx context.Context, req request.MarkAllReadRequest) (*respond.MarkAllReadRespond, error) {
	if strings.TrimSpace(req.OwnerId) == "" {
		return nil, xerr.ErrParam
	}

	unread, err := s.lifecycle.ListUnread(ctx, req.OwnerId)
	if err != nil {
		return nil, err
	}
	for _, n := range unread {
		if !n.IsOwnedBy(req.OwnerId) {
			zlog.Error("unread query returned a foreign notification",
				zap.String("notification_id", n.Id),
				zap.String("user_id", req.OwnerId))
			return nil, ErrNotOwner
		}
	}

	count, err := s.lifecycle.MarkAllRead(ctx, req.OwnerId)
	if err != nil {
		return nil, err
	}
	return &respond.MarkAllReadRespond{Count: count}, nil
}
