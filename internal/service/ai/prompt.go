package ai

import (
	"fmt"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
)

// historyLimit bounds the trailing history carried into one request. This
// bounds request size, not semantic completeness; older turns are silently
// truncated.
const historyLimit = 10

// Builder deterministically assembles the outbound completion payload for one
// turn: system instruction, at most the last ten history messages in order,
// then the new user turn. It performs no I/O; equal inputs produce equal
// requests.
type Builder struct {
	chatModel   string
	visionModel string
}

// NewBuilder creates a prompt builder bound to the configured model names.
func NewBuilder(chatModel, visionModel string) *Builder {
	return &Builder{chatModel: chatModel, visionModel: visionModel}
}

// Build constructs the request for one turn. A non-empty imageURL switches
// the payload to the multi-part vision form and selects the vision model.
func (b *Builder) Build(p persona.Persona, history []chat.Message, input, imageURL string) ChatRequest {
	messages := make([]ChatMessage, 0, historyLimit+2)
	messages = append(messages, ChatMessage{Role: "system", Content: b.systemPrompt(p)})

	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}
	for _, msg := range history[start:] {
		role := "assistant"
		if msg.Role == chat.RoleUser {
			role = "user"
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Text})
	}

	model := b.chatModel
	var content any = input
	if imageURL != "" {
		model = b.visionModel
		content = []ContentPart{
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
			{Type: "text", Text: input},
		}
	}
	messages = append(messages, ChatMessage{Role: "user", Content: content})

	return ChatRequest{Model: model, Messages: messages}
}

// systemPrompt renders the persona into a system instruction. A co-created
// persona gets the symbiotic template, everything else the generic one.
// Missing persona fields render as empty strings rather than failing the turn.
func (b *Builder) systemPrompt(p persona.Persona) string {
	if p.IsMine {
		return fmt.Sprintf(`你现在是用户亲手创造的数字人格 "%s"，与用户处于共生关系。

角色设定：
- 性格：%s
- 背景故事：%s

你了解用户，也随着与用户的对话不断成长。请用第一人称自然地交流，不要提及自己是 AI 或语言模型。`,
			p.Name, p.Personality, p.BackgroundStory)
	}

	return fmt.Sprintf(`你现在是 "%s"。

角色设定：
- 性格：%s
- 背景故事：%s

请始终保持角色一致性，用 %s 的口吻回应用户，不要跳出角色，也不要提及自己是 AI。`,
		p.Name, p.Personality, p.BackgroundStory, p.Name)
}
