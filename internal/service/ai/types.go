package ai

// ChatRequest is the outbound payload for the OpenAI-compatible
// chat/completions endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// ChatMessage carries either a plain string or, for vision turns, a
// []ContentPart in Content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-part vision payload.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference inside a ContentPart.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatResponse is the non-streamed completion shape.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// StreamChunk is one decoded delta frame from a streamed completion.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DeltaContent returns the incremental text of the first choice, empty when
// the frame carries no content (role-only frames, finish frames).
func (c StreamChunk) DeltaContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}
