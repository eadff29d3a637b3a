package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"magpie/internal/pkg/kv"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	kvStore kv.Store
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(kvStore kv.Store) *HealthHandler {
	return &HealthHandler{kvStore: kvStore}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查：kv 后端可达才算就绪
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.kvStore.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"kv":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"kv":     h.kvStore.Name(),
	})
}
