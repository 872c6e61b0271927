package updates

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	conversationService "github.com/yongyiq/Persona/internal/service/conversation"
	"github.com/yongyiq/Persona/pkg/logger"
)

// WebSocketHandler 推送会话状态快照给本地UI
type WebSocketHandler struct {
	convSvc  *conversationService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(convSvc *conversationService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		convSvc: convSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{personaID}", h.handleWebSocket)
}

// handleWebSocket 把指定会话的每次状态更新推送到连接上
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	updates, cancel, err := h.convSvc.Watch(personaID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("[ws] upgrade failed for persona=%s: %v", personaID, err)
		return
	}
	defer conn.Close()

	// read pump: we ignore client frames but need reads to notice the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 推送当前快照，新连接无需等待下一次更新
	if snapshot, err := h.convSvc.Snapshot(personaID); err == nil {
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.Debugf("[ws] write failed for persona=%s: %v", personaID, err)
				return
			}
		case <-closed:
			return
		}
	}
}
