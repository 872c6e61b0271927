package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/yongyiq/Persona/internal/handler/conversation"
	personaHandler "github.com/yongyiq/Persona/internal/handler/persona"
	"github.com/yongyiq/Persona/internal/handler/updates"
	middlewarePkg "github.com/yongyiq/Persona/internal/middleware"
	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/internal/service/backend"
	conversationService "github.com/yongyiq/Persona/internal/service/conversation"
)

// NewRouter wires HTTP routes to the conversation engine for local UI
// development.
func NewRouter(convSvc *conversationService.Service, aiSvc *ai.Client, backendSvc *backend.Client, userID int64) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	convHandler := conversationHandler.New(convSvc, backendSvc, userID)
	personas := personaHandler.New(aiSvc, backendSvc)
	ws := updates.NewWebSocketHandler(convSvc)

	r.Route("/api", func(api chi.Router) {
		convHandler.RegisterRoutes(api)
		personas.RegisterRoutes(api)
		ws.RegisterRoutes(api)
	})

	return r
}
