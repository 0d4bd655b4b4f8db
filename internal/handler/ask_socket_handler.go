package handler

import (
	"encoding/json"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// socketFrame 是客户端发来的一帧。
type socketFrame struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

// socketReply 是回给客户端的一帧，Error 与 Reply 二选一。
type socketReply struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// AskSocketHandler 在 WebSocket 连接上处理连续的 ask 请求。
type AskSocketHandler struct {
	knowledge *KnowledgeHandler
}

// NewAskSocketHandler 创建一个新的 AskSocketHandler，复用 KnowledgeHandler 的 ask 流程。
func NewAskSocketHandler(knowledge *KnowledgeHandler) *AskSocketHandler {
	return &AskSocketHandler{knowledge: knowledge}
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *AskSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立: %s", c.ClientIP())
	ctx := c.Request.Context()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var frame socketFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			if werr := conn.WriteJSON(socketReply{Error: "invalid frame"}); werr != nil {
				return
			}
			continue
		}
		if frame.Question == "" {
			if werr := conn.WriteJSON(socketReply{Error: "question is required"}); werr != nil {
				return
			}
			continue
		}

		reply, err := h.knowledge.answer(ctx, frame.Question, frame.Category)
		if err != nil {
			msg := err.Error()
			if !service.IsValidationError(err) {
				log.Errorf("WebSocket ask 失败: %v", err)
				msg = "internal server error"
			}
			if werr := conn.WriteJSON(socketReply{Error: msg}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(socketReply{Reply: reply}); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			return
		}
	}
}
