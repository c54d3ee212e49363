package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const googleGenerateBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// GoogleClient calls the Gemini generateContent API.
type GoogleClient struct {
	baseURL string
	client  *http.Client
}

// googleRequest is the generateContent request body. The system prompt goes
// in systemInstruction; the user prompt is the single content entry.
type googleRequest struct {
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

// googleResponse is the subset of the response we consume.
type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

// NewGoogleClient creates the Google Gemini adapter.
func NewGoogleClient(client *http.Client) *GoogleClient {
	return &GoogleClient{baseURL: googleGenerateBaseURL, client: client}
}

// Name returns the provider name.
func (c *GoogleClient) Name() string { return "google" }

// Complete sends one generateContent request and returns the generated text.
func (c *GoogleClient) Complete(ctx context.Context, req Request) (string, error) {
	body := googleRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: req.UserPrompt}}}},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemPrompt}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", decodeError(c.Name(), fmt.Errorf("marshal request: %w", err))
	}

	endpoint := c.baseURL + url.PathEscape(req.Model) + ":generateContent"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", buildError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Header rather than ?key= so the key stays out of URLs and proxy logs.
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", requestError(c.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestError(c.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.Name(), resp.StatusCode, raw)
	}

	var result googleResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", decodeError(c.Name(), err)
	}

	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", emptyError(c.Name())
}
