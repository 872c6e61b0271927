package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
	"github.com/yongyiq/Persona/pkg/logger"
)

// phase tracks a streaming session through its lifecycle:
// idle → sending → streaming → finalizing → synced | failed.
type phase int

const (
	phaseIdle phase = iota
	phaseSending
	phaseStreaming
	phaseFinalizing
	phaseSynced
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseSending:
		return "sending"
	case phaseStreaming:
		return "streaming"
	case phaseFinalizing:
		return "finalizing"
	case phaseSynced:
		return "synced"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// session drives a single turn. Exactly one session runs per conversation
// key; the Submit guard enforces that before a session is created.
type session struct {
	svc   *Service
	key   chat.ConversationKey
	phase phase
}

func newSession(svc *Service, key chat.ConversationKey) *session {
	return &session{svc: svc, key: key, phase: phaseIdle}
}

func (t *session) transition(next phase) {
	logger.Debugf("[conversation] persona=%s session %s -> %s", t.key.PersonaID, t.phase, next)
	t.phase = next
}

// runTextTurn streams the assistant reply into a placeholder message token by
// token. Transport failures never discard the turn: the error is written into
// the visible text and the turn still finalizes and syncs.
func (t *session) runTextTurn(ctx context.Context, target persona.Persona, history []chat.Message, input, imageURL string) error {
	t.transition(phaseSending)

	placeholder := chat.Message{
		ID:        chat.NewLocalID(),
		Key:       t.key,
		Role:      chat.RoleAssistant,
		Kind:      chat.KindText,
		Streaming: true,
		CreatedAt: time.Now().UTC(),
	}
	t.svc.appendMessage(t.key, placeholder)

	req := t.svc.deps.Prompt.Build(target, history, input, imageURL)

	var full strings.Builder
	var streamErr error

	if !t.svc.deps.StreamResponse {
		text, err := t.svc.deps.Completion.Complete(ctx, req)
		if err != nil {
			streamErr = err
		} else {
			t.transition(phaseStreaming)
			full.WriteString(text)
			t.svc.replaceMessage(t.key, placeholder.ID, func(m *chat.Message) {
				m.Text = text
			})
		}
	} else if stream, err := t.svc.deps.Completion.StreamChat(ctx, req); err != nil {
		streamErr = err
	} else {
		t.transition(phaseStreaming)
		for stream.Scan() {
			full.WriteString(stream.Delta())
			text := full.String()
			t.svc.replaceMessage(t.key, placeholder.ID, func(m *chat.Message) {
				m.Text = text
			})
		}
		streamErr = stream.Err()
		stream.Close()
	}

	t.transition(phaseFinalizing)

	switch {
	case streamErr == nil:
	case errors.Is(streamErr, context.Canceled) || ctx.Err() != nil:
		// navigated away mid-stream: keep what is buffered, no error marker
		logger.Infof("[conversation] persona=%s stream cancelled, finalizing %d buffered bytes", t.key.PersonaID, full.Len())
	default:
		full.WriteString(fmt.Sprintf("\n[网络错误: %v]", streamErr))
		logger.Errorf("[conversation] persona=%s stream failed: %v", t.key.PersonaID, streamErr)
	}

	finalText := full.String()
	t.svc.replaceMessage(t.key, placeholder.ID, func(m *chat.Message) {
		m.Text = finalText
		m.Streaming = false
	})
	t.svc.finishTurn(t.key)

	t.svc.deps.Sync.Enqueue(chat.Message{
		ID:        placeholder.ID,
		Key:       t.key,
		Role:      chat.RoleAssistant,
		Kind:      chat.KindText,
		Text:      finalText,
		CreatedAt: time.Now().UTC(),
	})
	t.transition(phaseSynced)

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) && ctx.Err() == nil {
		return streamErr
	}
	return nil
}

// runImageTurn is the non-streamed branch: one blocking backend call that
// swaps the placeholder in place, keeping its local identity.
func (t *session) runImageTurn(ctx context.Context, userMsg chat.Message) error {
	t.transition(phaseSending)

	placeholder := chat.Message{
		ID:        chat.NewLocalID(),
		Key:       t.key,
		Role:      chat.RoleAssistant,
		Kind:      chat.KindText,
		Text:      "🎨 正在挥毫泼墨中...",
		Streaming: true,
		CreatedAt: time.Now().UTC(),
	}
	t.svc.appendMessage(t.key, placeholder)

	generated, err := t.svc.deps.Store.GenerateImage(ctx, userMsg)

	t.transition(phaseFinalizing)
	if err != nil {
		t.svc.replaceMessage(t.key, placeholder.ID, func(m *chat.Message) {
			m.Text = fmt.Sprintf("生成失败: %v", err)
			m.Streaming = false
		})
		t.svc.finishTurn(t.key)
		t.transition(phaseFailed)
		logger.Errorf("[conversation] persona=%s image generation failed: %v", t.key.PersonaID, err)
		return err
	}

	t.svc.replaceMessage(t.key, placeholder.ID, func(m *chat.Message) {
		m.Role = chat.RoleAssistant
		m.Kind = generated.Kind
		m.Text = generated.Text
		m.Streaming = false
	})
	t.svc.finishTurn(t.key)
	// the backend already persisted the generated message; no sync needed
	t.transition(phaseSynced)
	return nil
}
