package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yongyiq/Persona/internal/config"
	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
)

var ErrRejected = errors.New("backend: request rejected")

// Client consumes the remote message/persona store over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a backend client from configuration.
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: cfg.BaseURL,
	}
}

// Conversation is one entry of the user's conversation list.
type Conversation struct {
	PersonaID       string `json:"personaId"`
	PersonaName     string `json:"personaName"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime string `json:"lastMessageTime,omitempty"`
}

// History loads the ordered message log for one conversation.
func (c *Client) History(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(key.UserID, 10))
	query.Set("personaId", key.PersonaID)

	wire, err := getJSON[[]wireMessage](ctx, c, "/api/chat/history", query)
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, w.toModel(key))
	}
	return messages, nil
}

// SaveMessage persists one finalized message. The server assigns the durable
// identity; the client-side ID is deliberately not sent.
func (c *Client) SaveMessage(ctx context.Context, m chat.Message) error {
	_, err := postJSON[bool](ctx, c, "/api/chat", toWire(m))
	return err
}

// GenerateImage runs the blocking image-generation flow. The returned message
// is a full assistant message whose text holds the image URL.
func (c *Client) GenerateImage(ctx context.Context, m chat.Message) (chat.Message, error) {
	wire, err := postJSON[wireMessage](ctx, c, "/api/chat/image", toWire(m))
	if err != nil {
		return chat.Message{}, err
	}
	return wire.toModel(m.Key), nil
}

// Persona fetches one persona by identifier.
func (c *Client) Persona(ctx context.Context, id string) (persona.Persona, error) {
	return getJSON[persona.Persona](ctx, c, "/api/personas/"+url.PathEscape(id), nil)
}

// Conversations loads the user's conversation list.
func (c *Client) Conversations(ctx context.Context, userID int64) ([]Conversation, error) {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(userID, 10))
	return getJSON[[]Conversation](ctx, c, "/api/chat/conversations", query)
}

// Upload stores raw media bytes and returns the public URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return decodeEnvelope[string](c.httpClient, req)
}

// apiResponse mirrors the backend's Result<T> envelope.
type apiResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var zero T

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	return decodeEnvelope[T](c.httpClient, req)
}

func postJSON[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	var zero T

	body, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal payload for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return decodeEnvelope[T](c.httpClient, req)
}

func decodeEnvelope[T any](client *http.Client, req *http.Request) (T, error) {
	var zero T

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return zero, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(detail))
	}

	var envelope apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return zero, fmt.Errorf("failed to decode backend response: %w", err)
	}
	if envelope.Code != http.StatusOK {
		return zero, fmt.Errorf("%w: code %d: %s", ErrRejected, envelope.Code, envelope.Message)
	}

	return envelope.Data, nil
}
