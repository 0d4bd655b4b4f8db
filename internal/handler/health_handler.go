package handler

import (
	"context"
	"mangrat-go/pkg/log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler 通过一次数据库 ping 报告服务是否可用。
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Check 处理 GET /healthz。
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		log.Warnf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
