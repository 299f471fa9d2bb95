package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"OpenCollab/internal/modules/notification/domain/entity"
	"OpenCollab/internal/modules/notification/domain/repository"
	"OpenCollab/pkg/util"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL ER_NO_REFERENCED_ROW / ER_NO_REFERENCED_ROW_2
const (
	mysqlErrNoReferencedRow  = 1216
	mysqlErrNoReferencedRow2 = 1452
)

type notificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func (r *notificationRepositoryImpl) Create(ctx context.Context, n *entity.Notification) error {
	if n.Id == "" {
		n.Id = util.GenerateUUID()
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		n.Id = ""
		return translateError(err)
	}
	return nil
}

func (r *notificationRepositoryImpl) FindByID(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepositoryImpl) FindMany(ctx context.Context, filter repository.NotificationFilter) ([]*entity.Notification, error) {
	var out []*entity.Notification
	err := applyFilter(r.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepositoryImpl) UpdateReadAt(ctx context.Context, id string, readAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", readAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// 未命中：区分已被并发请求标记与行不存在
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrAlreadyRead
}

func (r *notificationRepositoryImpl) UpdateManyReadAt(ctx context.Context, filter repository.NotificationFilter, readAt time.Time) (int64, error) {
	if filter.RecipientId == "" && len(filter.Ids) == 0 {
		return 0, errors.New("refusing unscoped bulk update")
	}
	res := applyFilter(r.db.WithContext(ctx).Model(&entity.Notification{}), filter).
		Update("read_at", readAt)
	return res.RowsAffected, res.Error
}

func applyFilter(db *gorm.DB, filter repository.NotificationFilter) *gorm.DB {
	if filter.RecipientId != "" {
		db = db.Where("recipient_id = ?", filter.RecipientId)
	}
	if filter.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}
	if len(filter.Ids) > 0 {
		db = db.Where("id IN ?", filter.Ids)
	}
	return db
}

// translateError 将外键冲突映射为仓储层错误，约束列名从驱动报文中识别
func translateError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	if me.Number != mysqlErrNoReferencedRow && me.Number != mysqlErrNoReferencedRow2 {
		return err
	}
	msg := strings.ToLower(me.Message)
	switch {
	case strings.Contains(msg, "sender_id"):
		return fmt.Errorf("%w: %s", repository.ErrSenderForeignKey, me.Message)
	case strings.Contains(msg, "recipient_id"):
		return fmt.Errorf("%w: %s", repository.ErrRecipientForeignKey, me.Message)
	default:
		return err
	}
}
