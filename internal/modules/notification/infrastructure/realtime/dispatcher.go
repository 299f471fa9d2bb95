package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/pkg/ws"
	"OpenCollab/pkg/zlog"

	"go.uber.org/zap"
)

const (
	EventNotification       = "notification"
	EventNotificationUpdate = "notification-update"
	EventMessage            = "message"
)

// Envelope 下发给客户端的帧结构
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Dispatcher 尽力而为地把负载推送到在线连接；离线直接丢弃，不排队不重试
type Dispatcher struct {
	hub     *ws.Hub
	metrics metrics.Recorder
}

func NewDispatcher(hub *ws.Hub, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Dispatcher{hub: hub, metrics: rec}
}

// SendToUser 以 notification 事件推送给 userID 的当前连接
func (d *Dispatcher) SendToUser(userID string, payload interface{}) error {
	return d.emit(userID, EventNotification, payload)
}

// SendUpdateToUser 以 notification-update 事件推送已读状态变化
func (d *Dispatcher) SendUpdateToUser(userID string, payload interface{}) error {
	return d.emit(userID, EventNotificationUpdate, payload)
}

// BroadcastRaw 推送给所有在线连接，返回成功入队的连接数
func (d *Dispatcher) BroadcastRaw(payload interface{}) int {
	frame, err := json.Marshal(Envelope{Event: EventMessage, Data: payload})
	if err != nil {
		zlog.Error("broadcast encode failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, c := range d.hub.Snapshot() {
		if err := d.enqueue(c, frame); err != nil {
			zlog.Warn("broadcast to client failed", zap.String("user_id", c.UserID()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (d *Dispatcher) emit(userID, event string, payload interface{}) error {
	c, ok := d.hub.Lookup(userID)
	if !ok {
		zlog.Info("recipient offline, dispatch dropped", zap.String("user_id", userID), zap.String("event", event))
		d.metrics.RecordDispatch(event, metrics.ResultOffline)
		return nil
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		d.metrics.RecordDispatch(event, metrics.ResultFailed)
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	if err := d.enqueue(c, frame); err != nil {
		d.metrics.RecordDispatch(event, metrics.ResultFailed)
		return fmt.Errorf("dispatch %s to %s: %w", event, userID, err)
	}
	d.metrics.RecordDispatch(event, metrics.ResultDelivered)
	return nil
}

// enqueue 对积压的慢连接摘除并关闭，客户端需重新握手
func (d *Dispatcher) enqueue(c *ws.Client, frame []byte) error {
	err := c.Enqueue(frame)
	if errors.Is(err, ws.ErrSendBufferFull) {
		d.hub.Release(c)
		c.Close()
	}
	return err
}
