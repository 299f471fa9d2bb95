package channel

import (
	"context"

	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

const EmailChannelName = "email"

// EmailChannel 邮件通道占位实现，只记录日志
type EmailChannel struct{}

func NewEmailChannel() *EmailChannel {
	return &EmailChannel{}
}

func (EmailChannel) Name() string {
	return EmailChannelName
}

func (EmailChannel) Deliver(_ context.Context, item respond.NotificationItem) error {
	zlog.Warn("email channel not implemented, skipped",
		zap.String("notification_id", item.Id),
		zap.String("user_id", item.RecipientId),
		zap.String("type", item.Type))
	return nil
}
