package backend

import (
	"strconv"
	"time"

	"github.com/yongyiq/Persona/internal/model/chat"
)

// wireMessage is the backend's chat message shape. The persona identity is
// numeric on the wire but opaque in the engine.
type wireMessage struct {
	ID         *int64 `json:"id,omitempty"`
	Content    string `json:"content"`
	UserID     int64  `json:"userId"`
	PersonaID  int64  `json:"personaId"`
	IsFromUser bool   `json:"isFromUser"`
	Type       int    `json:"type"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func toWire(m chat.Message) wireMessage {
	personaID, _ := strconv.ParseInt(m.Key.PersonaID, 10, 64)
	return wireMessage{
		Content:    m.Text,
		UserID:     m.Key.UserID,
		PersonaID:  personaID,
		IsFromUser: m.Role == chat.RoleUser,
		Type:       int(m.Kind),
	}
}

func (w wireMessage) toModel(key chat.ConversationKey) chat.Message {
	id := chat.NewLocalID()
	if w.ID != nil && *w.ID != 0 {
		id = chat.RemoteID(*w.ID)
	}

	role := chat.RoleAssistant
	if w.IsFromUser {
		role = chat.RoleUser
	}

	kind := chat.KindText
	if w.Type == int(chat.KindImage) {
		kind = chat.KindImage
	}

	createdAt := time.Time{}
	if w.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	return chat.Message{
		ID:        id,
		Key:       key,
		Role:      role,
		Kind:      kind,
		Text:      w.Content,
		CreatedAt: createdAt,
	}
}
