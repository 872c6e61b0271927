package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yongyiq/Persona/internal/config"
	"github.com/yongyiq/Persona/internal/handler"
	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/internal/service/backend"
	"github.com/yongyiq/Persona/internal/service/conversation"
	syncService "github.com/yongyiq/Persona/internal/service/sync"
	"github.com/yongyiq/Persona/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warnf("failed to load .env file: %v, continuing with system environment only", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if !cfg.AI.Enabled() {
		logger.Warnf("QWEN_API_KEY 未配置，流式回复将全部失败")
	}

	aiClient := ai.NewClient(cfg.AI)
	backendClient := backend.NewClient(cfg.Backend)
	coordinator := syncService.NewCoordinator(backendClient, cfg.Sync.QueueSize, cfg.Sync.WritesPerSecond)
	defer coordinator.Close()

	engine := conversation.New(conversation.Deps{
		Completion:     aiClient,
		Store:          backendClient,
		Sync:           coordinator,
		Prompt:         ai.NewBuilder(cfg.AI.ChatModel, cfg.AI.VisionModel),
		UserID:         cfg.Backend.UserID,
		StreamResponse: cfg.AI.StreamResponse,
	})

	router := handler.NewRouter(engine, aiClient, backendClient, cfg.Backend.UserID)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Infof("Persona devserver listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
