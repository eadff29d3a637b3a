package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"magpie/internal/capture"
	"magpie/internal/model"
)

// SnapshotHandler 快照上报处理器
type SnapshotHandler struct {
	controller *capture.Controller
}

// NewSnapshotHandler 创建快照上报处理器
func NewSnapshotHandler(controller *capture.Controller) *SnapshotHandler {
	return &SnapshotHandler{controller: controller}
}

// Ingest 接收一次完整 DOM 快照
// 上报本身就是一次变更信号，控制器按节流窗口调度提取
func (h *SnapshotHandler) Ingest(c *gin.Context) {
	var req model.SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid snapshot payload",
			Detail:  err.Error(),
		})
		return
	}

	snap := model.Snapshot{
		PageID:     req.PageID,
		URL:        req.URL,
		Title:      req.Title,
		HTML:       req.HTML,
		CapturedAt: time.Now(),
	}

	log.Debug().
		Str("url", snap.URL).
		Str("hash", snap.Hash()[:12]).
		Int("bytes", len(snap.HTML)).
		Msg("snapshot received")

	h.controller.Notify(snap)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "snapshot accepted",
	})
}
