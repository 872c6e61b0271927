package persona

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/internal/service/backend"
)

// Handler persona相关的HTTP处理器
type Handler struct {
	aiSvc      *ai.Client
	backendSvc *backend.Client
}

// New 创建persona处理器
func New(aiSvc *ai.Client, backendSvc *backend.Client) *Handler {
	return &Handler{aiSvc: aiSvc, backendSvc: backendSvc}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas/{id}", h.handleGetPersona)
	r.Post("/personas/generate", h.handleGenerateProfile)
	r.Post("/personas/{id}/post", h.handleGeneratePost)
}

// handleGetPersona 透传后端的persona详情
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	target, err := h.backendSvc.Persona(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, target)
}

// handleGenerateProfile 根据主题生成一个新的persona档案
func (h *Handler) handleGenerateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Theme == "" {
		h.respondError(w, http.StatusBadRequest, "theme is required")
		return
	}

	profile, err := h.aiSvc.GeneratePersonaProfile(r.Context(), payload.Theme)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

// handleGeneratePost 以persona口吻生成一条社交动态文本
func (h *Handler) handleGeneratePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	target, err := h.backendSvc.Persona(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	content, err := h.aiSvc.GeneratePostContent(r.Context(), target)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

// respondJSON 发送JSON响应
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
