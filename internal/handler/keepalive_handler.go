package handler

import (
	"mangrat-go/pkg/keepalive"
	"net/http"

	"github.com/gin-gonic/gin"
)

// KeepAliveController 是 keepalive.Pinger 的控制接口。
type KeepAliveController interface {
	Start() bool
	Stop() bool
	Status() keepalive.Status
}

// KeepAliveHandler 暴露 keep-alive 的启停与状态查询。
type KeepAliveHandler struct {
	pinger KeepAliveController
}

// NewKeepAliveHandler 创建一个新的 KeepAliveHandler。
func NewKeepAliveHandler(pinger KeepAliveController) *KeepAliveHandler {
	return &KeepAliveHandler{pinger: pinger}
}

// Start 启动 keep-alive，已在运行时返回当前状态。
func (h *KeepAliveHandler) Start(c *gin.Context) {
	message := "Keep-alive started"
	if !h.pinger.Start() {
		message = "Keep-alive already running"
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": h.pinger.Status()})
}

// Stop 停止 keep-alive。
func (h *KeepAliveHandler) Stop(c *gin.Context) {
	message := "Keep-alive stopped"
	if !h.pinger.Stop() {
		message = "Keep-alive not running"
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": h.pinger.Status()})
}

// Status 返回 keep-alive 当前状态。
func (h *KeepAliveHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.pinger.Status()})
}
