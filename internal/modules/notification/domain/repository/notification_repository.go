package repository

import (
	"context"
	"errors"
	"time"

	"OpenCollab/internal/modules/notification/domain/entity"
)

var (
	ErrNotFound            = errors.New("notification not found")
	ErrAlreadyRead         = errors.New("notification already read")
	ErrSenderForeignKey    = errors.New("foreign key violation on sender")
	ErrRecipientForeignKey = errors.New("foreign key violation on recipient")
)

// NotificationFilter 查询/批量更新条件，零值字段不参与过滤
type NotificationFilter struct {
	RecipientId string
	UnreadOnly  bool
	Ids         []string
}

// NotificationRepository 通知持久化协作者
type NotificationRepository interface {
	// Create 写入新通知并分配 Id；外键冲突返回 ErrSenderForeignKey / ErrRecipientForeignKey
	Create(ctx context.Context, n *entity.Notification) error

	// FindByID 不存在时返回 ErrNotFound
	FindByID(ctx context.Context, id string) (*entity.Notification, error)

	// FindMany 按 created_at 倒序返回
	FindMany(ctx context.Context, filter NotificationFilter) ([]*entity.Notification, error)

	// UpdateReadAt 仅在未读时写入；已读返回 ErrAlreadyRead，不存在返回 ErrNotFound
	UpdateReadAt(ctx context.Context, id string, readAt time.Time) error

	// UpdateManyReadAt 批量设置已读时间，返回受影响行数
	UpdateManyReadAt(ctx context.Context, filter NotificationFilter, readAt time.Time) (int64, error)
}
