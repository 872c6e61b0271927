package chat

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind distinguishes prose from generated-image messages. An image
// message carries the image URL in Text, not prose.
type ContentKind int

const (
	KindText  ContentKind = 0
	KindImage ContentKind = 1
)

// MessageID keeps the client-assigned and server-assigned identity spaces
// apart. A message starts life with only a local UUID; the remote half is set
// once the backend has confirmed it. The two halves are never silently
// conflated.
type MessageID struct {
	local  string
	remote int64
}

// NewLocalID mints an unconfirmed client-side identity.
func NewLocalID() MessageID {
	return MessageID{local: uuid.NewString()}
}

// RemoteID wraps a server-assigned identity.
func RemoteID(id int64) MessageID {
	return MessageID{remote: id}
}

// IsRemote reports whether the backend has confirmed this message.
func (id MessageID) IsRemote() bool { return id.remote != 0 }

// Local returns the client-assigned half, empty for server-loaded messages.
func (id MessageID) Local() string { return id.local }

// Remote returns the server-assigned half, zero while unconfirmed.
func (id MessageID) Remote() int64 { return id.remote }

func (id MessageID) String() string {
	if id.remote != 0 {
		return strconv.FormatInt(id.remote, 10)
	}
	return id.local
}

// MarshalJSON exposes the identity as a single opaque token for the UI layer.
func (id MessageID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// ConversationKey identifies one user-persona thread. All engine operations
// are scoped to a single key.
type ConversationKey struct {
	UserID    int64  `json:"userId"`
	PersonaID string `json:"personaId"`
}

// Message is a single chat turn unit. Text is mutable only while Streaming is
// true; once a turn finalizes the message is treated as immutable.
type Message struct {
	ID        MessageID       `json:"id"`
	Key       ConversationKey `json:"key"`
	Role      Role            `json:"role"`
	Kind      ContentKind     `json:"type"`
	Text      string          `json:"content"`
	Streaming bool            `json:"streaming"`
	CreatedAt time.Time       `json:"createdAt"`
}
