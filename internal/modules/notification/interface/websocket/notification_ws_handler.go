package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"OpenCollab/internal/modules/notification/application/service"
	"OpenCollab/internal/modules/notification/infrastructure/realtime"
	"OpenCollab/pkg/back"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/ws"
	"OpenCollab/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HeaderConnectionToken 不便使用 query 的客户端可改用该 header 携带凭证
const HeaderConnectionToken = "X-Connection-Token"

const (
	eventPing = "ping"
	eventPong = "pong"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Broadcaster 诊断用的全量广播出口
type Broadcaster interface {
	BroadcastRaw(payload interface{}) int
}

type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongWait     time.Duration
	ReadLimit    int64
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 16
	}
	return o
}

// NotificationWSHandler 实时通道的握手鉴权与连接生命周期
type NotificationWSHandler struct {
	hub         *ws.Hub
	conn        service.ConnectionService
	broadcaster Broadcaster
	opts        Options
}

func NewNotificationWSHandler(hub *ws.Hub, conn service.ConnectionService, broadcaster Broadcaster, opts Options) *NotificationWSHandler {
	return &NotificationWSHandler{
		hub:         hub,
		conn:        conn,
		broadcaster: broadcaster,
		opts:        opts.withDefaults(),
	}
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Connect 握手流程：取凭证 -> 校验（不消费）-> 升级 -> 消费 -> 注册。
// 升级前的失败以 401 拒绝；消费失败说明凭证已被并发握手抢先使用，直接断开。
func (h *NotificationWSHandler) Connect(c *gin.Context) {
	credential, err := h.conn.Credential(c.Query("token"), c.GetHeader(HeaderConnectionToken))
	if err != nil {
		reject(c, err)
		return
	}
	userID, err := h.conn.Admit(c.Request.Context(), credential)
	if err != nil {
		reject(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !h.conn.Claim(c.Request.Context(), credential) {
		zlog.Warn("connection token already consumed", zap.String("user_id", userID))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "credential already used"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	client := ws.NewClient(userID, conn, ws.WithSendBuffer(h.opts.SendBuffer), ws.WithWriteTimeout(h.opts.WriteTimeout))
	if prev := h.hub.Register(client); prev != nil {
		zlog.Info("superseding previous connection", zap.String("user_id", userID))
		prev.Close()
	}
	zlog.Info("realtime channel connected", zap.String("user_id", userID))

	defer func() {
		h.hub.Release(client)
		client.Close()
		zlog.Info("realtime channel disconnected", zap.String("user_id", userID))
	}()

	conn.SetReadLimit(h.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	go client.WritePump(h.opts.PongWait * 9 / 10)

	h.readLoop(client, conn)
}

func (h *NotificationWSHandler) readLoop(client *ws.Client, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Warn("websocket read failed", zap.String("user_id", client.UserID()), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))

		var in inboundFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			zlog.Debug("ignore malformed frame", zap.String("user_id", client.UserID()), zap.Error(err))
			continue
		}
		switch in.Event {
		case eventPing:
			frame, _ := json.Marshal(realtime.Envelope{Event: eventPong, Data: nil})
			if err := client.Enqueue(frame); err != nil {
				return
			}
		case realtime.EventMessage:
			if h.broadcaster != nil {
				h.broadcaster.BroadcastRaw(in.Data)
			}
		default:
			zlog.Debug("ignore unknown frame", zap.String("user_id", client.UserID()), zap.String("event", in.Event))
		}
	}
}

func reject(c *gin.Context, err error) {
	code, msg := xerr.Unauthorized, err.Error()
	if ce, ok := xerr.As(err); ok {
		code, msg = ce.Code, ce.Message
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, back.Response{Code: code, Message: msg})
}
