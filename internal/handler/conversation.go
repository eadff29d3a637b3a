package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"magpie/internal/model"
	"magpie/internal/pkg/archive"
	"magpie/internal/store"
)

// ConversationHandler 会话管理处理器
type ConversationHandler struct {
	convStore *store.ConversationStore
	archive   archive.Archive // 可为 nil（未配置归档）
}

// NewConversationHandler 创建会话管理处理器
func NewConversationHandler(convStore *store.ConversationStore, arc archive.Archive) *ConversationHandler {
	return &ConversationHandler{
		convStore: convStore,
		archive:   arc,
	}
}

// List 获取会话列表
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.convStore.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to list conversations",
			Detail:  err.Error(),
		})
		return
	}

	list := make([]model.Conversation, 0, len(convs))
	for _, conv := range convs {
		list = append(list, conv)
	}

	c.JSON(http.StatusOK, model.ListConversationsResponse{
		Conversations: list,
		Total:         len(list),
	})
}

// Get 获取会话详情
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.convStore.GetOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Code:    40401,
				Message: "Conversation not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to get conversation",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Delete 删除会话
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.convStore.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Code:    40401,
				Message: "Conversation not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to delete conversation",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Conversation deleted",
	})
}

// ClearAll 清空全部会话
func (h *ConversationHandler) ClearAll(c *gin.Context) {
	if err := h.convStore.ClearAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to clear conversations",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All conversations cleared",
	})
}

// Usage 存储用量
func (h *ConversationHandler) Usage(c *gin.Context) {
	usage, err := h.convStore.Usage(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to compute usage",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, usage)
}

// Export 导出全部会话
// 配置了归档后端时顺带落一份归档，归档失败不影响导出结果
func (h *ConversationHandler) Export(c *gin.Context) {
	export, err := h.convStore.Export(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to export conversations",
			Detail:  err.Error(),
		})
		return
	}

	if h.archive != nil {
		data, err := json.Marshal(export)
		if err == nil {
			key := fmt.Sprintf("exports/magpie-%s.json", export.ExportDate.UTC().Format("20060102-150405"))
			if url, err := h.archive.Put(c.Request.Context(), key, data, "application/json"); err != nil {
				log.Warn().Err(err).Msg("failed to archive export")
			} else {
				log.Info().Str("url", url).Msg("export archived")
			}
		}
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=magpie-export-%s.json", time.Now().UTC().Format("20060102")))
	c.JSON(http.StatusOK, export)
}

// Import 导入会话，只新增本地不存在的会话
func (h *ConversationHandler) Import(c *gin.Context) {
	var export model.Export
	if err := c.ShouldBindJSON(&export); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid export payload",
			Detail:  err.Error(),
		})
		return
	}

	added, err := h.convStore.Import(c.Request.Context(), &export)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to import conversations",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Conversations imported",
		"added":   added,
	})
}
