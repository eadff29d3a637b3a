package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"magpie/internal/capture"
	"magpie/internal/model"
	httpkg "magpie/internal/pkg/http"
)

// CaptureHandler 捕获控制处理器
type CaptureHandler struct {
	controller *capture.Controller
}

// NewCaptureHandler 创建捕获控制处理器
func NewCaptureHandler(controller *capture.Controller) *CaptureHandler {
	return &CaptureHandler{controller: controller}
}

// Toggle 开关捕获
func (h *CaptureHandler) Toggle(c *gin.Context) {
	var req model.ToggleCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	h.controller.Toggle(*req.Enabled)

	c.JSON(http.StatusOK, httpkg.NewSuccessResponse("capture toggled", h.controller.Status()))
}

// Status 查询捕获状态
func (h *CaptureHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}
