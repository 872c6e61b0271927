package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yongyiq/Persona/internal/config"
	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/internal/service/backend"
	"github.com/yongyiq/Persona/internal/service/conversation"
	syncService "github.com/yongyiq/Persona/internal/service/sync"
	"github.com/yongyiq/Persona/pkg/logger"
)

func main() {
	personaID := flag.String("persona", "", "persona id to chat with")
	flag.Parse()

	if *personaID == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -persona <id>")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logger.Warnf("failed to load .env file: %v, continuing with system environment only", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

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

	ctx := context.Background()
	snapshot, err := engine.Open(ctx, *personaID)
	if err != nil {
		logger.Fatalf("failed to open conversation: %v", err)
	}
	defer engine.Close(*personaID)

	name := snapshot.Persona.Name
	fmt.Printf("与 %s 的对话（%d 条历史消息）。输入 /quit 退出，/attach <path> <text> 发送图片。\n", name, len(snapshot.Messages))

	updates, cancelWatch, err := engine.Watch(*personaID)
	if err != nil {
		logger.Fatalf("failed to watch conversation: %v", err)
	}
	defer cancelWatch()
	go render(updates, name)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("你> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			return
		}

		var attachment []byte
		if rest, ok := strings.CutPrefix(input, "/attach "); ok {
			path, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("无法读取 %s: %v\n", path, err)
				continue
			}
			attachment = data
			input = strings.TrimSpace(text)
			if input == "" {
				input = "请看这张图片"
			}
		}

		if err := engine.Submit(ctx, *personaID, input, attachment); err != nil {
			if errors.Is(err, conversation.ErrTurnInFlight) {
				fmt.Println("上一条回复还没结束")
				continue
			}
			logger.Warnf("turn ended with error: %v", err)
		}
	}
}

// render prints assistant output incrementally as snapshots arrive.
func render(updates <-chan conversation.Snapshot, name string) {
	var lastID string
	var printed int
	var finished bool

	for snapshot := range updates {
		if len(snapshot.Messages) == 0 {
			continue
		}
		last := snapshot.Messages[len(snapshot.Messages)-1]
		if last.Role != chat.RoleAssistant {
			continue
		}

		id := last.ID.String()
		if id != lastID {
			lastID = id
			printed = 0
			finished = false
			fmt.Printf("\n%s> ", name)
		}
		if len(last.Text) > printed {
			fmt.Print(last.Text[printed:])
			printed = len(last.Text)
		}
		if !last.Streaming && !finished {
			finished = true
			fmt.Println()
		}
	}
}
