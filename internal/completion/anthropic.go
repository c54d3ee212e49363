package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicMessagesEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion          = "2023-06-01"
	anthropicMaxTokens        = 4096
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	endpoint string
	client   *http.Client
}

// anthropicRequest is the Messages API request body. The system prompt is
// a top-level field, not a message.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the subset of the response we consume.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicClient creates the Anthropic adapter.
func NewAnthropicClient(client *http.Client) *AnthropicClient {
	return &AnthropicClient{endpoint: anthropicMessagesEndpoint, client: client}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete sends one Messages API request and returns the generated text.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
	})
	if err != nil {
		return "", decodeError(c.Name(), fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", buildError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", requestError(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestError(c.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.Name(), resp.StatusCode, body)
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", decodeError(c.Name(), err)
	}

	for _, block := range result.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", emptyError(c.Name())
}
