package ai_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
	"github.com/yongyiq/Persona/internal/service/ai"
)

func testPersona() persona.Persona {
	return persona.Persona{
		ID:              "7",
		Name:            "林語",
		Personality:     "温柔、博学",
		BackgroundStory: "江南书香世家出身的数字人格",
	}
}

func historyOf(n int) []chat.Message {
	history := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		history = append(history, chat.Message{
			ID:   chat.NewLocalID(),
			Role: role,
			Text: fmt.Sprintf("msg-%d", i),
		})
	}
	return history
}

func TestBuildTruncatesHistoryToLastTen(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	req := builder.Build(testPersona(), historyOf(15), "hello", "")

	// system + 10 history + new user turn
	require.Len(t, req.Messages, 12)
	assert.Equal(t, "system", req.Messages[0].Role)

	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+5), req.Messages[i+1].Content)
	}
	assert.Equal(t, "user", req.Messages[11].Role)
	assert.Equal(t, "hello", req.Messages[11].Content)
}

func TestBuildKeepsShortHistoryIntact(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	req := builder.Build(testPersona(), historyOf(3), "hi", "")

	require.Len(t, req.Messages, 5)
	assert.Equal(t, "msg-0", req.Messages[1].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "msg-2", req.Messages[3].Content)
}

func TestBuildSelectsVisionModelForImageTurns(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	req := builder.Build(testPersona(), nil, "这是什么？", "https://cdn.example.com/cat.jpg")

	assert.Equal(t, "qwen-vl-max", req.Model)

	parts, ok := req.Messages[len(req.Messages)-1].Content.([]ai.ContentPart)
	require.True(t, ok, "vision turn must carry a multi-part payload")
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[0].Type)
	assert.Equal(t, "https://cdn.example.com/cat.jpg", parts[0].ImageURL.URL)
	assert.Equal(t, "text", parts[1].Type)
	assert.Equal(t, "这是什么？", parts[1].Text)
}

func TestBuildUsesChatModelForTextTurns(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	req := builder.Build(testPersona(), nil, "hello", "")

	assert.Equal(t, "qwen-plus", req.Model)
	assert.False(t, req.Stream)
}

func TestBuildIsDeterministic(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")
	history := historyOf(4)

	first := builder.Build(testPersona(), history, "hello", "")
	second := builder.Build(testPersona(), history, "hello", "")

	assert.Equal(t, first, second)
}

func TestBuildTemplatesDifferByOwnership(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	mine := testPersona()
	mine.IsMine = true

	generic := builder.Build(testPersona(), nil, "hi", "")
	owned := builder.Build(mine, nil, "hi", "")

	genericPrompt := generic.Messages[0].Content.(string)
	ownedPrompt := owned.Messages[0].Content.(string)

	assert.NotEqual(t, genericPrompt, ownedPrompt)
	assert.True(t, strings.Contains(ownedPrompt, "共生"))
}

func TestBuildToleratesEmptyPersonaFields(t *testing.T) {
	builder := ai.NewBuilder("qwen-plus", "qwen-vl-max")

	req := builder.Build(persona.Persona{ID: "1", Name: "小明"}, nil, "hi", "")

	prompt := req.Messages[0].Content.(string)
	assert.Contains(t, prompt, "小明")
	require.Len(t, req.Messages, 2)
}
