package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRecipientRequired = errors.New("recipient is required")
	ErrTypeRequired      = errors.New("type is required")
	ErrPayloadRequired   = errors.New("payload is required")
	ErrCreatedAtRequired = errors.New("created_at is required")
	ErrAlreadyRead       = errors.New("notification already read")
)

// Payload 通知负载，结构由各通知类型的生产方决定，本层只做透传
type Payload map[string]interface{}

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Payload) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("payload: unsupported scan type %T", src)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*p = m
	return nil
}

// Notification 面向用户的一条通知；ReadAt 为 nil 表示未读，一旦设置不再清空
type Notification struct {
	Id          string     `gorm:"column:id;type:char(36);primaryKey"`
	RecipientId string     `gorm:"column:recipient_id;type:char(36);not null;index:idx_notification_recipient_read,priority:1"`
	SenderId    *string    `gorm:"column:sender_id;type:char(36);index"`
	Type        string     `gorm:"column:type;type:varchar(100);not null"`
	Payload     Payload    `gorm:"column:payload;type:json;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:datetime(3);not null;index"`
	ReadAt      *time.Time `gorm:"column:read_at;type:datetime(3);index:idx_notification_recipient_read,priority:2"`
}

func (Notification) TableName() string {
	return "notification"
}

// CreateParams 新建通知所需字段
type CreateParams struct {
	RecipientId string
	SenderId    string
	Type        string
	Payload     Payload
}

// NewNotification 校验并构造一条未读通知，CreatedAt 取 now，Id 留空待持久化时分配
func NewNotification(p CreateParams, now time.Time) (*Notification, error) {
	n := &Notification{
		RecipientId: strings.TrimSpace(p.RecipientId),
		Type:        strings.TrimSpace(p.Type),
		Payload:     p.Payload,
		CreatedAt:   now,
	}
	if sender := strings.TrimSpace(p.SenderId); sender != "" {
		n.SenderId = &sender
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Reconstitute 由存储中的行重建实体，校验规则与新建一致
func Reconstitute(row *Notification) (*Notification, error) {
	if row == nil {
		return nil, errors.New("notification row is nil")
	}
	n := *row
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("reconstitute notification %s: %w", row.Id, err)
	}
	if n.CreatedAt.IsZero() {
		return nil, fmt.Errorf("reconstitute notification %s: %w", row.Id, ErrCreatedAtRequired)
	}
	return &n, nil
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.RecipientId) == "" {
		return ErrRecipientRequired
	}
	if strings.TrimSpace(n.Type) == "" {
		return ErrTypeRequired
	}
	if n.Payload == nil {
		return ErrPayloadRequired
	}
	return nil
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

func (n *Notification) IsOwnedBy(userID string) bool {
	return userID != "" && n.RecipientId == userID
}

// MarkRead 设置已读时间；已读的通知返回 ErrAlreadyRead 且不修改
func (n *Notification) MarkRead(at time.Time) error {
	if n.IsRead() {
		return ErrAlreadyRead
	}
	t := at
	n.ReadAt = &t
	return nil
}
