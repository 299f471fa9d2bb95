package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/domain/entity"
	"OpenCollab/internal/modules/notification/domain/repository"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

const ChannelRealtime = "realtime"

// RealtimeDispatcher 实时推送出口
type RealtimeDispatcher interface {
	SendToUser(userID string, payload interface{}) error
	SendUpdateToUser(userID string, payload interface{}) error
}

// DeliveryChannel 实时通道以外的投递通道（如邮件）
type DeliveryChannel interface {
	Name() string
	Deliver(ctx context.Context, item respond.NotificationItem) error
}

// DeliveryPolicy 投递失败时的处理策略，单条创建与批量已读相互独立
type DeliveryPolicy struct {
	FailCreateOnDeliveryError  bool
	FailMarkAllOnDeliveryError bool
	DefaultChannels            []string
}

func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		FailCreateOnDeliveryError:  true,
		FailMarkAllOnDeliveryError: false,
		DefaultChannels:            []string{ChannelRealtime},
	}
}

// LifecycleService 唯一负责“先持久化、再推送”的组件
type LifecycleService interface {
	ResolveChannels(channels []string) ([]string, error)
	Send(ctx context.Context, n *entity.Notification, channels []string) (*respond.NotificationItem, error)
	FindByID(ctx context.Context, id string) (*entity.Notification, error)
	ListUnread(ctx context.Context, recipientID string) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id string) (*respond.NotificationItem, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

type lifecycleServiceImpl struct {
	repo       repository.NotificationRepository
	dispatcher RealtimeDispatcher
	channels   map[string]DeliveryChannel
	policy     DeliveryPolicy
	now        func() time.Time
}

type LifecycleOption func(*lifecycleServiceImpl)

func WithClock(now func() time.Time) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

func WithChannels(channels ...DeliveryChannel) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		for _, ch := range channels {
			if ch != nil && ch.Name() != ChannelRealtime {
				s.channels[ch.Name()] = ch
			}
		}
	}
}

func NewLifecycleService(repo repository.NotificationRepository, dispatcher RealtimeDispatcher, policy DeliveryPolicy, opts ...LifecycleOption) LifecycleService {
	if len(policy.DefaultChannels) == 0 {
		policy.DefaultChannels = []string{ChannelRealtime}
	}
	s := &lifecycleServiceImpl{
		repo:       repo,
		dispatcher: dispatcher,
		channels:   make(map[string]DeliveryChannel),
		policy:     policy,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveChannels 空列表取默认通道，去重并拒绝未知通道
func (s *lifecycleServiceImpl) ResolveChannels(channels []string) ([]string, error) {
	if len(channels) == 0 {
		channels = s.policy.DefaultChannels
	}
	out := make([]string, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))
	for _, name := range channels {
		if _, ok := seen[name]; ok {
			continue
		}
		if name != ChannelRealtime {
			if _, ok := s.channels[name]; !ok {
				return nil, fmt.Errorf("unknown channel: %q", name)
			}
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (s *lifecycleServiceImpl) Send(ctx context.Context, n *entity.Notification, channels []string) (*respond.NotificationItem, error) {
	resolved, err := s.ResolveChannels(channels)
	if err != nil {
		return nil, validationError(err)
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, mapPersistenceError(err)
	}
	item := respond.NewNotificationItem(n)

	// 持久化已提交，投递失败不回滚
	var deliveryErr error
	for _, name := range resolved {
		if name == ChannelRealtime {
			if err := s.dispatcher.SendToUser(n.RecipientId, item); err != nil {
				zlog.Error("realtime delivery failed",
					zap.String("notification_id", n.Id),
					zap.String("user_id", n.RecipientId),
					zap.Error(err))
				deliveryErr = errors.Join(deliveryErr, err)
			}
			continue
		}
		if err := s.channels[name].Deliver(ctx, item); err != nil {
			zlog.Warn("channel delivery failed",
				zap.String("channel", name),
				zap.String("notification_id", n.Id),
				zap.Error(err))
		}
	}
	if deliveryErr != nil && s.policy.FailCreateOnDeliveryError {
		return &item, ErrDeliveryFailed
	}
	return &item, nil
}

func (s *lifecycleServiceImpl) FindByID(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		zlog.Error("load notification failed", zap.String("notification_id", id), zap.Error(err))
		return nil, ErrUnknown
	}
	return n, nil
}

func (s *lifecycleServiceImpl) ListUnread(ctx context.Context, recipientID string) ([]*entity.Notification, error) {
	rows, err := s.repo.FindMany(ctx, repository.NotificationFilter{
		RecipientId: recipientID,
		UnreadOnly:  true,
	})
	if err != nil {
		zlog.Error("list unread notifications failed", zap.String("user_id", recipientID), zap.Error(err))
		return nil, ErrUnknown
	}
	return rows, nil
}

func (s *lifecycleServiceImpl) MarkRead(ctx context.Context, id string) (*respond.NotificationItem, error) {
	n, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := n.MarkRead(s.now()); err != nil {
		return nil, ErrAlreadyRead
	}
	if err := s.repo.UpdateReadAt(ctx, n.Id, *n.ReadAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		if errors.Is(err, repository.ErrAlreadyRead) {
			return nil, ErrAlreadyRead
		}
		zlog.Error("mark notification read failed", zap.String("notification_id", id), zap.Error(err))
		return nil, ErrUnknown
	}

	item := respond.NewNotificationItem(n)
	// 已读状态已落库，推送失败只告警
	if err := s.dispatcher.SendUpdateToUser(n.RecipientId, item); err != nil {
		zlog.Warn("notification-update delivery failed",
			zap.String("notification_id", n.Id),
			zap.String("user_id", n.RecipientId),
			zap.Error(err))
	}
	return &item, nil
}

func (s *lifecycleServiceImpl) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	unread, err := s.ListUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.Id)
	}
	// 与 datetime(3) 精度对齐，回读时可直接比较
	readAt := s.now().Truncate(time.Millisecond)
	count, err := s.repo.UpdateManyReadAt(ctx, repository.NotificationFilter{
		RecipientId: recipientID,
		UnreadOnly:  true,
		Ids:         ids,
	}, readAt)
	if err != nil {
		zlog.Error("mark all notifications read failed", zap.String("user_id", recipientID), zap.Error(err))
		return 0, ErrUnknown
	}

	touched := unread
	if count < int64(len(unread)) {
		// 部分行已被并发请求标记，只推送本次写入的行
		touched = s.stampedRows(ctx, recipientID, ids, readAt)
	} else {
		for _, n := range unread {
			_ = n.MarkRead(readAt)
		}
	}

	failed := 0
	for _, n := range touched {
		if err := s.dispatcher.SendUpdateToUser(n.RecipientId, respond.NewNotificationItem(n)); err != nil {
			failed++
			zlog.Warn("notification-update delivery failed",
				zap.String("notification_id", n.Id),
				zap.String("user_id", n.RecipientId),
				zap.Error(err))
		}
	}
	if failed > 0 && s.policy.FailMarkAllOnDeliveryError {
		return count, ErrDeliveryFailed
	}
	return count, nil
}

// stampedRows 重新读取 ids，返回 read_at 与本次批量时间一致的行
func (s *lifecycleServiceImpl) stampedRows(ctx context.Context, recipientID string, ids []string, readAt time.Time) []*entity.Notification {
	rows, err := s.repo.FindMany(ctx, repository.NotificationFilter{
		RecipientId: recipientID,
		Ids:         ids,
	})
	if err != nil {
		zlog.Warn("reload marked notifications failed, skip notification-update",
			zap.String("user_id", recipientID),
			zap.Error(err))
		return nil
	}
	out := make([]*entity.Notification, 0, len(rows))
	for _, n := range rows {
		if n.ReadAt != nil && n.ReadAt.Equal(readAt) {
			out = append(out, n)
		}
	}
	return out
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSenderForeignKey):
		return ErrSenderNotFound
	case errors.Is(err, repository.ErrRecipientForeignKey):
		return ErrRecipientNotFound
	default:
		zlog.Error("persist notification failed", zap.Error(err))
		return ErrUnknown
	}
}
