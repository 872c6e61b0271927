package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yongyiq/Persona/internal/service/backend"
	conversationService "github.com/yongyiq/Persona/internal/service/conversation"
	"github.com/yongyiq/Persona/pkg/logger"
)

// Handler 会话引擎的HTTP处理器
type Handler struct {
	convSvc    *conversationService.Service
	backendSvc *backend.Client
	userID     int64
}

// New 创建会话处理器
func New(convSvc *conversationService.Service, backendSvc *backend.Client, userID int64) *Handler {
	return &Handler{
		convSvc:    convSvc,
		backendSvc: backendSvc,
		userID:     userID,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleListConversations)
	r.Post("/conversations/{personaID}/open", h.handleOpen)
	r.Get("/conversations/{personaID}", h.handleSnapshot)
	r.Post("/conversations/{personaID}/messages", h.handleSubmit)
	r.Delete("/conversations/{personaID}", h.handleClose)
}

// handleListConversations 获取会话列表
func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.backendSvc.Conversations(r.Context(), h.userID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

// handleOpen 打开会话并返回快照
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	snapshot, err := h.convSvc.Open(r.Context(), personaID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleSnapshot 获取当前会话快照
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	snapshot, err := h.convSvc.Snapshot(personaID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleSubmit 提交一个回合；更新通过 websocket 推送
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	var payload struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Input == "" {
		respondError(w, http.StatusBadRequest, "input is required")
		return
	}

	snapshot, err := h.convSvc.Snapshot(personaID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if snapshot.TurnInFlight {
		respondError(w, http.StatusConflict, conversationService.ErrTurnInFlight.Error())
		return
	}

	// The session outlives the HTTP request on purpose: its lifetime is tied
	// to the conversation, not this call.
	go func() {
		if err := h.convSvc.Submit(context.Background(), personaID, payload.Input, nil); err != nil {
			if !errors.Is(err, conversationService.ErrTurnInFlight) {
				logger.Errorf("[handler] turn for persona=%s ended with error: %v", personaID, err)
			}
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleClose 关闭会话
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	if err := h.convSvc.Close(personaID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("[handler] failed to encode response: %v", err)
	}
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
