package respond

import (
	"time"

	"OpenCollab/internal/modules/notification/domain/entity"
)

// ISO8601Milli 与前端 Date.toISOString 一致的时间格式
const ISO8601Milli = "2006-01-02T15:04:05.000Z07:00"

// NotificationItem 通知对外的公共结构，HTTP 与实时推送共用
type NotificationItem struct {
	Id          string                 `json:"id"`
	RecipientId string                 `json:"recipient_id"`
	SenderId    *string                `json:"sender_id"`
	Type        string                 `json:"type"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   string                 `json:"created_at"`
	ReadAt      *string                `json:"read_at"`
}

func NewNotificationItem(n *entity.Notification) NotificationItem {
	item := NotificationItem{
		Id:          n.Id,
		RecipientId: n.RecipientId,
		SenderId:    n.SenderId,
		Type:        n.Type,
		Payload:     n.Payload,
		CreatedAt:   n.CreatedAt.UTC().Format(ISO8601Milli),
	}
	if n.ReadAt != nil {
		s := n.ReadAt.UTC().Format(ISO8601Milli)
		item.ReadAt = &s
	}
	return item
}

type MarkAllReadRespond struct {
	Count int64 `json:"count"`
}

type ConnectionTokenRespond struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func NewConnectionTokenRespond(token string, expiresAt time.Time) ConnectionTokenRespond {
	return ConnectionTokenRespond{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(ISO8601Milli),
	}
}
