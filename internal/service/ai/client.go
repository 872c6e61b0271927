package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yongyiq/Persona/internal/config"
	"github.com/yongyiq/Persona/internal/model/persona"
	"github.com/yongyiq/Persona/pkg/logger"
)

var ErrNotConfigured = errors.New("ai: api key not configured")

// Client talks to an OpenAI-compatible chat completion endpoint, both the
// blocking and the token-streamed variant.
type Client struct {
	httpClient *http.Client
	cfg        config.AIConfig
}

// NewClient creates a completion client from configuration.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg: cfg,
	}
}

// Complete performs a non-streamed completion and returns the first choice's
// content.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	req.Stream = false

	resp, err := c.send(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// StreamChat opens a token-streamed completion. The caller owns the returned
// stream and must Close it.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*DeltaStream, error) {
	req.Stream = true

	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	return NewDeltaStream(resp.Body), nil
}

func (c *Client) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return resp, nil
}

// GeneratePersonaProfile asks the model to design a persona around a theme and
// parses the strict-JSON reply into a user-owned Persona.
func (c *Client) GeneratePersonaProfile(ctx context.Context, theme string) (persona.Persona, error) {
	const systemPrompt = `你是一个专业的创意写作助手。请根据用户的主题，设计一个独特的虚拟角色(Persona)。

必须严格按照以下 JSON 格式返回，不要包含任何 markdown 标记或额外文字：
{
  "name": "角色的名字",
  "backgroundStory": "200字以内的背景故事",
  "personality": "角色的核心性格关键词和描述"
}`

	content, err := c.Complete(ctx, ChatRequest{
		Model: c.cfg.ChatModel,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "主题是：" + theme},
		},
	})
	if err != nil {
		return persona.Persona{}, err
	}

	// 模型偶尔仍会带上代码块围栏，剥掉再解析。
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(content, "```json", ""), "```", ""))

	var profile struct {
		Name            string `json:"name"`
		BackgroundStory string `json:"backgroundStory"`
		Personality     string `json:"personality"`
	}
	if err := json.Unmarshal([]byte(cleaned), &profile); err != nil {
		return persona.Persona{}, fmt.Errorf("failed to parse generated profile: %w", err)
	}

	generated := persona.Persona{
		ID:              fmt.Sprintf("my-persona-%d", time.Now().UnixMilli()),
		Name:            profile.Name,
		BackgroundStory: profile.BackgroundStory,
		Personality:     profile.Personality,
		IsMine:          true,
	}
	if generated.Name == "" {
		generated.Name = "Unknown"
	}

	logger.Infof("[ai] generated persona profile %q for theme %q", generated.Name, theme)
	return generated, nil
}

// GeneratePostContent asks the model for a short social post in the persona's
// voice.
func (c *Client) GeneratePostContent(ctx context.Context, p persona.Persona) (string, error) {
	systemPrompt := fmt.Sprintf(`你现在是 "%s"。
性格：%s。

任务：请写一条简短的社交网络动态（类似微博）。
要求：
1. 必须完全符合你的性格口吻。
2. 长度控制在 30-80 字之间。
3. 不要加引号，直接输出内容。`, p.Name, p.Personality)

	content, err := c.Complete(ctx, ChatRequest{
		Model:    c.cfg.ChatModel,
		Messages: []ChatMessage{{Role: "system", Content: systemPrompt}},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}
