package conversation

import (
	"context"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
)

// Snapshot is the immutable view of one conversation handed to observers.
type Snapshot struct {
	Persona      persona.Persona `json:"persona"`
	Messages     []chat.Message  `json:"messages"`
	TurnInFlight bool            `json:"turnInFlight"`
}

// state is the shared mutable record for one conversation key. All access is
// guarded by the owning Service's mutex; the message log is only ever
// replaced wholesale, never mutated in place, so snapshots stay stable.
type state struct {
	persona      persona.Persona
	messages     []chat.Message
	turnInFlight bool
	cancelTurn   context.CancelFunc
	watchers     map[int]chan Snapshot
	nextWatcher  int
}

func (s *state) snapshot() Snapshot {
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return Snapshot{
		Persona:      s.persona,
		Messages:     copied,
		TurnInFlight: s.turnInFlight,
	}
}

// notify fans the current snapshot out to all watchers without ever blocking
// the streaming path; a slow observer misses intermediate frames, not final
// state.
func (s *state) notify() {
	snap := s.snapshot()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
