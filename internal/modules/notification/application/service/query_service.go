package service

import (
	"context"
	"strings"

	"OpenCollab/internal/modules/notification/application/dto/request"
	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/domain/entity"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

type NotificationQueryService interface {
	ListUnread(ctx context.Context, req request.ListUnreadRequest) ([]respond.NotificationItem, error)
}

type notificationQueryServiceImpl struct {
	lifecycle LifecycleService
}

func NewNotificationQueryService(lifecycle LifecycleService) NotificationQueryService {
	return &notificationQueryServiceImpl{lifecycle: lifecycle}
}

// ListUnread 任意一行重建失败则整体失败，不返回部分结果
func (s *notificationQueryServiceImpl) ListUnread(ctx context.Context, req request.ListUnreadRequest) ([]respond.NotificationItem, error) {
	if strings.TrimSpace(req.OwnerId) == "" {
		return nil, xerr.ErrParam
	}
	rows, err := s.lifecycle.ListUnread(ctx, req.OwnerId)
	if err != nil {
		return nil, err
	}

	out := make([]respond.NotificationItem, 0, len(rows))
	for _, row := range rows {
		n, err := entity.Reconstitute(row)
		if err != nil {
			zlog.Error("reconstitute notification failed", zap.String("notification_id", row.Id), zap.Error(err))
			return nil, ErrUnknown
		}
		out = append(out, respond.NewNotificationItem(n))
	}
	return out, nil
}
