package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"magpie/internal/capture"
	"magpie/internal/model"
	"magpie/internal/pkg/ctxutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	// shim 从页面源连接
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame shim 推送的一帧
// change 帧只是触发信号，snapshot 帧携带最新的完整 DOM
type wsFrame struct {
	Type   string `json:"type"` // change / snapshot
	PageID string `json:"page_id,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
	HTML   string `json:"html,omitempty"`
}

// WSHandler 变更通知通道处理器
type WSHandler struct {
	controller *capture.Controller
}

// NewWSHandler 创建变更通知处理器
func NewWSHandler(controller *capture.Controller) *WSHandler {
	return &WSHandler{controller: controller}
}

// Feed 升级为 WebSocket 并消费 shim 推送的变更流
func (h *WSHandler) Feed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	client, _ := ctxutil.GetClient(c.Request.Context())
	log.Info().
		Str("remote", conn.RemoteAddr().String()).
		Str("client", client).
		Msg("shim connected")

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		switch frame.Type {
		case "snapshot":
			if frame.HTML == "" || frame.URL == "" {
				continue
			}
			h.controller.Notify(model.Snapshot{
				PageID:     frame.PageID,
				URL:        frame.URL,
				Title:      frame.Title,
				HTML:       frame.HTML,
				CapturedAt: time.Now(),
			})
		case "change":
			// 载荷不透明，只是触发器
			h.controller.Touch()
		default:
			log.Debug().Str("type", frame.Type).Msg("ignoring unknown ws frame")
		}
	}
}
