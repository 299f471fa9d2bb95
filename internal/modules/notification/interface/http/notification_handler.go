package handler

import (
	"OpenCollab/internal/middleware/jwt"
	"OpenCollab/internal/modules/notification/application/dto/request"
	"OpenCollab/internal/modules/notification/application/service"
	"OpenCollab/pkg/back"
	"OpenCollab/pkg/xerr"
	"OpenCollab/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	cmd  service.NotificationCommandService
	qry  service.NotificationQueryService
	conn service.ConnectionService
}

func NewNotificationHandler(cmd service.NotificationCommandService, qry service.NotificationQueryService, conn service.ConnectionService) *NotificationHandler {
	return &NotificationHandler{cmd: cmd, qry: qry, conn: conn}
}

// Register 挂载到已经过 JWT 鉴权的路由组
func (h *NotificationHandler) Register(rg gin.IRoutes) {
	rg.POST("/notification/create", h.Create)
	rg.POST("/notification/listUnread", h.ListUnread)
	rg.POST("/notification/markRead", h.MarkRead)
	rg.POST("/notification/markAllRead", h.MarkAllRead)
	rg.POST("/notification/connectionToken", h.ConnectionToken)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req request.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind create notification request failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	// 发送者同样只认当前登录用户
	req.SenderId = userID
	data, err := h.cmd.Create(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	data, err := h.qry.ListUnread(c.Request.Context(), request.ListUnreadRequest{OwnerId: userID})
	back.Result(c, data, err)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req request.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind mark read request failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	// 所有者只认鉴权中间件给出的身份
	req.OwnerId = userID
	data, err := h.cmd.MarkRead(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	data, err := h.cmd.MarkAllRead(c.Request.Context(), request.MarkAllReadRequest{OwnerId: userID})
	back.Result(c, data, err)
}

func (h *NotificationHandler) ConnectionToken(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	data, err := h.conn.IssueToken(c.Request.Context(), userID)
	back.Result(c, data, err)
}

func callerID(c *gin.Context) (string, bool) {
	userID := c.GetString(jwt.ContextUserKey)
	if userID == "" {
		back.Result(c, nil, xerr.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
