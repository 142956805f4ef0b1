package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"structai/internal/util/jsonutil"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "google/gemini-2.0-flash-001"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Model serves GenerateJSON; ChatModel serves Chat and falls back to Model.
	Model     string
	ChatModel string
	Timeout   time.Duration
}

// OpenAIClient calls an OpenAI-compatible Chat Completions API (OpenRouter by
// default) over plain HTTP.
type OpenAIClient struct {
	http      *http.Client
	apiKey    string
	baseURL   string
	model     string
	chatModel string
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	c := &OpenAIClient{
		http:      &http.Client{Timeout: cfg.Timeout},
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		chatModel: cfg.ChatModel,
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = 90 * time.Second
	}
	if c.baseURL == "" {
		c.baseURL = DefaultOpenRouterBaseURL
	}
	if c.model == "" {
		c.model = DefaultOpenRouterModel
	}
	if c.chatModel == "" {
		c.chatModel = c.model
	}
	return c
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateJSON sends prompt as the system message and the input as the user
// message, asking for a JSON object.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := jsonutil.MarshalNoEscape(input)
	content, err := c.complete(ctx, chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "[INPUT JSON]\n" + string(in)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}
	raw, err := jsonutil.Extract(content)
	if err != nil {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}

// Chat maps model turns to the "assistant" role.
func (c *OpenAIClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+1)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		role := "user"
		if m.Role == RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	content, err := c.complete(ctx, chatReq{Model: c.chatModel, Messages: msgs, Temperature: 0.7})
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

func (c *OpenAIClient) complete(ctx context.Context, body chatReq) (string, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("openai: unexpected status %s: %s", resp.Status, string(msg))
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return "", NewPermanentError(err)
		case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(msg), "context_length_exceeded"):
			return "", NewPermanentError(err)
		}
		return "", err
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
