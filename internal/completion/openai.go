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
	openAIChatEndpoint = "https://api.openai.com/v1/chat/completions"
	groqChatEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
)

// ChatClient calls an OpenAI-compatible /chat/completions endpoint.
// OpenAI and Groq share this wire format; each is registered under its
// own provider name with its own base URL.
type ChatClient struct {
	name     string
	endpoint string
	client   *http.Client
}

// chatRequest is the OpenAI-compatible request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates the OpenAI chat-completion adapter.
func NewOpenAIClient(client *http.Client) *ChatClient {
	return &ChatClient{name: "openai", endpoint: openAIChatEndpoint, client: client}
}

// NewGroqClient creates the Groq chat-completion adapter.
func NewGroqClient(client *http.Client) *ChatClient {
	return &ChatClient{name: "groq", endpoint: groqChatEndpoint, client: client}
}

// NewChatClient creates an adapter for any OpenAI-compatible endpoint,
// registered under the given provider name.
func NewChatClient(name, endpoint string, client *http.Client) *ChatClient {
	return &ChatClient{name: name, endpoint: endpoint, client: client}
}

// Name returns the provider name.
func (c *ChatClient) Name() string { return c.name }

// Complete sends one chat completion request and returns the generated text.
func (c *ChatClient) Complete(ctx context.Context, req Request) (string, error) {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	payload, err := json.Marshal(chatRequest{Model: req.Model, Messages: messages})
	if err != nil {
		return "", decodeError(c.name, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", buildError(c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", requestError(c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestError(c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.name, resp.StatusCode, body)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", decodeError(c.name, err)
	}

	for _, choice := range result.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content, nil
		}
	}
	return "", emptyError(c.name)
}
