package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/pkg/logger"
)

var (
	ErrNotOpen       = errors.New("conversation: conversation not open")
	ErrEmptyInput    = errors.New("conversation: empty input")
	ErrTurnInFlight  = errors.New("conversation: a turn is already in flight")
	ErrAlreadyClosed = errors.New("conversation: conversation already closed")
)

// CompletionClient is the model surface the engine drives: token-streamed by
// default, blocking when streaming is disabled by configuration.
type CompletionClient interface {
	Complete(ctx context.Context, req ai.ChatRequest) (string, error)
	StreamChat(ctx context.Context, req ai.ChatRequest) (*ai.DeltaStream, error)
}

// Store is the remote read/branch surface (history hydration, persona lookup,
// image generation, media upload). Durable message writes go through Syncer
// instead.
type Store interface {
	History(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error)
	Persona(ctx context.Context, id string) (persona.Persona, error)
	GenerateImage(ctx context.Context, m chat.Message) (chat.Message, error)
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// Syncer receives finalized messages for fire-and-forget persistence.
type Syncer interface {
	Enqueue(m chat.Message)
}

// Deps wires the engine's collaborators explicitly; the engine holds no
// package-level state.
type Deps struct {
	Completion CompletionClient
	Store      Store
	Sync       Syncer
	Prompt     *ai.Builder
	UserID     int64
	// StreamResponse selects token streaming; when false each reply arrives
	// as one blocking completion applied in a single update.
	StreamResponse bool
}

// Service orchestrates conversations: it owns every ConversationState, runs
// one streaming session per conversation at a time, and fans state snapshots
// out to observers.
type Service struct {
	mu    sync.Mutex
	deps  Deps
	convs map[chat.ConversationKey]*state
}

// New creates the engine.
func New(deps Deps) *Service {
	return &Service{
		deps:  deps,
		convs: make(map[chat.ConversationKey]*state),
	}
}

func (s *Service) key(personaID string) chat.ConversationKey {
	return chat.ConversationKey{UserID: s.deps.UserID, PersonaID: personaID}
}

// Open hydrates a conversation from the remote store and registers it.
// Reopening an already-open conversation returns its current snapshot
// untouched. Hydration failures degrade to an empty log rather than failing
// the open: history can always be re-fetched later.
func (s *Service) Open(ctx context.Context, personaID string) (Snapshot, error) {
	key := s.key(personaID)

	s.mu.Lock()
	if st, ok := s.convs[key]; ok {
		snap := st.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	target, err := s.deps.Store.Persona(ctx, personaID)
	if err != nil {
		logger.Warnf("[conversation] persona %s lookup failed, using bare identity: %v", personaID, err)
		target = persona.Persona{ID: personaID, Name: personaID}
	}

	history, err := s.deps.Store.History(ctx, key)
	if err != nil {
		logger.Warnf("[conversation] history load for %s failed, starting empty: %v", personaID, err)
		history = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.convs[key]; ok {
		// lost the race to a concurrent Open
		return st.snapshot(), nil
	}

	st := &state{
		persona:  target,
		messages: history,
		watchers: make(map[int]chan Snapshot),
	}
	s.convs[key] = st
	logger.Infof("[conversation] opened persona=%s with %d history messages", personaID, len(history))
	return st.snapshot(), nil
}

// Close discards the conversation state. An in-flight session is cancelled;
// it stops reading, finalizes whatever it already buffered and still syncs it.
func (s *Service) Close(personaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[s.key(personaID)]
	if !ok {
		return ErrAlreadyClosed
	}

	if st.cancelTurn != nil {
		st.cancelTurn()
	}
	for _, ch := range st.watchers {
		close(ch)
	}
	delete(s.convs, s.key(personaID))
	logger.Infof("[conversation] closed persona=%s", personaID)
	return nil
}

// Snapshot returns the current view of an open conversation.
func (s *Service) Snapshot(personaID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[s.key(personaID)]
	if !ok {
		return Snapshot{}, ErrNotOpen
	}
	return st.snapshot(), nil
}

// Watch registers an observer for state updates. The returned cancel func
// unregisters it; the channel is closed on cancel or when the conversation
// closes.
func (s *Service) Watch(personaID string) (<-chan Snapshot, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(personaID)
	st, ok := s.convs[key]
	if !ok {
		return nil, nil, ErrNotOpen
	}

	id := st.nextWatcher
	st.nextWatcher++
	ch := make(chan Snapshot, 16)
	st.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st, ok := s.convs[key]; ok {
			if watcher, ok := st.watchers[id]; ok {
				delete(st.watchers, id)
				close(watcher)
			}
		}
	}
	return ch, cancel, nil
}

// Submit runs one full turn against the conversation and blocks until the
// turn reaches a terminal state. Observers see every intermediate update via
// Watch. While a turn is in flight further submissions are rejected without
// touching the log.
func (s *Service) Submit(ctx context.Context, personaID, input string, attachment []byte) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyInput
	}

	key := s.key(personaID)

	s.mu.Lock()
	st, ok := s.convs[key]
	if !ok {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if st.turnInFlight {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	st.turnInFlight = true
	turnCtx, cancel := context.WithCancel(ctx)
	st.cancelTurn = cancel
	history := make([]chat.Message, len(st.messages))
	copy(history, st.messages)
	target := st.persona
	st.notify()
	s.mu.Unlock()
	defer cancel()

	// Attachments upload before either branch; the resulting URL feeds the
	// vision payload and is embedded in the visible user message.
	var imageURL string
	if len(attachment) > 0 {
		uploaded, err := s.deps.Store.Upload(turnCtx, "upload.jpg", attachment)
		if err != nil {
			logger.Warnf("[conversation] attachment upload failed, sending text only: %v", err)
		} else {
			imageURL = uploaded
		}
	}

	display := input
	if imageURL != "" {
		display = fmt.Sprintf("%s\n![image](%s)", input, imageURL)
	}

	userMsg := chat.Message{
		ID:        chat.NewLocalID(),
		Key:       key,
		Role:      chat.RoleUser,
		Kind:      chat.KindText,
		Text:      display,
		CreatedAt: time.Now().UTC(),
	}
	s.appendMessage(key, userMsg)
	s.deps.Sync.Enqueue(userMsg)

	sess := newSession(s, key)
	if IsImageIntent(input) {
		return sess.runImageTurn(turnCtx, userMsg)
	}
	return sess.runTextTurn(turnCtx, target, history, input, imageURL)
}

// appendMessage replaces the whole log with a copy plus the new entry.
func (s *Service) appendMessage(key chat.ConversationKey, m chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[key]
	if !ok {
		return
	}
	updated := make([]chat.Message, 0, len(st.messages)+1)
	updated = append(updated, st.messages...)
	updated = append(updated, m)
	st.messages = updated
	st.notify()
}

// replaceMessage maps the log over the target id, applying mutate to the
// matching entry. The log is replaced wholesale, never edited in place.
func (s *Service) replaceMessage(key chat.ConversationKey, id chat.MessageID, mutate func(*chat.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[key]
	if !ok {
		return
	}
	updated := make([]chat.Message, len(st.messages))
	for i, m := range st.messages {
		if m.ID == id {
			mutate(&m)
		}
		updated[i] = m
	}
	st.messages = updated
	st.notify()
}

// finishTurn clears the in-flight guard for the conversation.
func (s *Service) finishTurn(key chat.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[key]
	if !ok {
		return
	}
	st.turnInFlight = false
	st.cancelTurn = nil
	st.notify()
}
