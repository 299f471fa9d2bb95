package ws

import (
	"errors"
	"sync"
	"time"

	"OpenCollab/pkg/zlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClientClosed   = errors.New("ws client closed")
	ErrSendBufferFull = errors.New("ws client send buffer full")
)

// Hub 连接注册表：每个身份至多保留一个活跃连接，后注册者覆盖先注册者。
// 注册表只维护映射，不负责关闭被覆盖的连接，也不做心跳探测。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register 记录 userID -> client，返回被覆盖的旧连接（可能为 nil）
func (h *Hub) Register(c *Client) *Client {
	if c == nil || c.userID == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.clients[c.userID]
	h.clients[c.userID] = c
	if prev == c {
		return nil
	}
	return prev
}

func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// Unregister 无条件移除 userID 的映射，不存在时为空操作
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	delete(h.clients, userID)
	h.mu.Unlock()
}

// Release 仅当 c 仍是该身份的当前连接时才移除映射。
// 被覆盖的旧连接断开时调用它，不会误删新连接。
func (h *Hub) Release(c *Client) bool {
	if c == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.userID]; ok && cur == c {
		delete(h.clients, c.userID)
		return true
	}
	return false
}

// Snapshot 返回当前全部连接的副本，供广播遍历
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	writeTimeout time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
}

type ClientOption func(*Client)

func WithSendBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.send = make(chan []byte, n)
		}
	}
}

func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

func NewClient(userID string, conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, 64),
		writeTimeout: 10 * time.Second,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) UserID() string {
	return c.userID
}

// Enqueue 非阻塞地投递一帧；缓冲区满或连接已关闭时立即返回错误
func (c *Client) Enqueue(payload []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Pending 待写出的帧，由 WritePump 消费
func (c *Client) Pending() <-chan []byte {
	return c.send
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// WritePump 串行写出 send 中的帧，pingPeriod > 0 时定期发送 ping
func (c *Client) WritePump(pingPeriod time.Duration) {
	if c.conn == nil {
		return
	}
	var tick <-chan time.Time
	if pingPeriod > 0 {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zlog.Warn("ws write failed", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-tick:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
