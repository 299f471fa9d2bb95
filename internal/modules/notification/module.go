package notification

import (
	"errors"
	"fmt"
	"time"

	"OpenCollab/internal/config"
	"OpenCollab/internal/modules/notification/application/service"
	"OpenCollab/internal/modules/notification/domain/token"
	"OpenCollab/internal/modules/notification/infrastructure/channel"
	"OpenCollab/internal/modules/notification/infrastructure/dedupe"
	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/internal/modules/notification/infrastructure/persistence"
	"OpenCollab/internal/modules/notification/infrastructure/realtime"
	"OpenCollab/internal/modules/notification/infrastructure/tokenstore"
	"OpenCollab/internal/modules/notification/interface/event"
	handler "OpenCollab/internal/modules/notification/interface/http"
	"OpenCollab/internal/modules/notification/interface/scheduler"
	notificationWs "OpenCollab/internal/modules/notification/interface/websocket"
	"OpenCollab/pkg/ws"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Module 通知子系统的全部组件，由 New 显式装配，不依赖包级全局状态
type Module struct {
	Hub          *ws.Hub
	Tokens       token.Store
	Dispatcher   *realtime.Dispatcher
	Lifecycle    service.LifecycleService
	Commands     service.NotificationCommandService
	Queries      service.NotificationQueryService
	Connections  service.ConnectionService
	HTTP         *handler.NotificationHandler
	Realtime     *notificationWs.NotificationWSHandler
	DomainEvents *event.DomainEventHandler

	// Janitor 仅在使用进程内凭证存储时非 nil
	Janitor *scheduler.TokenJanitor
}

// New reg 为 nil 时不注册指标；rdb 为 nil 时领域事件去重退回进程内记录
func New(conf config.NotificationConfig, db *gorm.DB, rdb *goredis.Client, reg prometheus.Registerer) (*Module, error) {
	if db == nil {
		return nil, errors.New("notification module requires a database")
	}
	m := &Module{Hub: ws.NewHub()}

	var rec metrics.Recorder = metrics.Nop{}
	if reg != nil {
		rec = metrics.NewCollector(reg, m.Hub.Len)
	}

	switch conf.TokenStore {
	case "", "memory":
		store := tokenstore.NewMemoryStore(conf.TokenTTL())
		m.Tokens = store
		m.Janitor = scheduler.NewTokenJanitor(store, rec)
	case "redis":
		if rdb == nil {
			return nil, errors.New("token store redis selected but redis is not configured")
		}
		m.Tokens = tokenstore.NewRedisStore(rdb, conf.TokenKeyPrefix, conf.TokenTTL())
	default:
		return nil, fmt.Errorf("unknown token store %q", conf.TokenStore)
	}

	m.Dispatcher = realtime.NewDispatcher(m.Hub, rec)
	m.Lifecycle = service.NewLifecycleService(
		persistence.NewNotificationRepository(db),
		m.Dispatcher,
		service.DeliveryPolicy{
			FailCreateOnDeliveryError:  conf.FailCreateOnDeliveryError,
			FailMarkAllOnDeliveryError: conf.FailMarkAllOnDeliveryError,
			DefaultChannels:            conf.DefaultChannels,
		},
		service.WithChannels(channel.NewEmailChannel()),
	)
	if _, err := m.Lifecycle.ResolveChannels(nil); err != nil {
		return nil, fmt.Errorf("default channels: %w", err)
	}

	m.Commands = service.NewNotificationCommandService(m.Lifecycle, nil)
	m.Queries = service.NewNotificationQueryService(m.Lifecycle)
	m.Connections = service.NewConnectionService(m.Tokens, rec)

	m.HTTP = handler.NewNotificationHandler(m.Commands, m.Queries, m.Connections)
	m.Realtime = notificationWs.NewNotificationWSHandler(m.Hub, m.Connections, m.Dispatcher, notificationWs.Options{
		SendBuffer:   conf.SendBufferSize,
		WriteTimeout: conf.WriteTimeout(),
		PongWait:     conf.PongWait(),
	})
	var eventOpts []event.Option
	if rdb != nil {
		eventOpts = append(eventOpts, event.WithDeduper(dedupe.NewRedisDeduper(rdb, "opencollab:notification_event:", 24*time.Hour)))
	}
	m.DomainEvents = event.NewDomainEventHandler(m.Commands, eventOpts...)
	return m, nil
}
