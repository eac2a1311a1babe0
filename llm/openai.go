// Package llm is a lightweight OpenAI-compatible vision client used by
// the describe endpoint to caption stored section crops. It uses
// net/http directly — no third-party SDK needed.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/faiz-00/screenshot/models"
)

// DefaultPrompt is the captioning instruction used when a request does
// not supply its own.
const DefaultPrompt = "Describe this section of a web page in one or two sentences. " +
	"Name the kind of section it is (hero, navigation, product grid, footer, form, article, etc.) " +
	"and summarize its visible content. Return plain text only."

// Client talks to any OpenAI-compatible chat completions API that
// accepts image content parts.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a vision client with the given http.Client.
// Pass nil to use a default client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// DescribeParams holds per-request model configuration (BYOK).
type DescribeParams struct {
	APIKey    string
	Model     string
	BaseURL   string // e.g. "https://api.openai.com/v1"
	Prompt    string // empty means DefaultPrompt
	MaxTokens int
}

// DescribeResult holds one generated caption plus token usage.
type DescribeResult struct {
	Description string
	Usage       *models.LLMUsage
}

// chatRequest is the OpenAI chat completion request body. Content is a
// list of parts so a text prompt and an image can travel together.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Describe sends one PNG crop to the vision model and returns its
// caption. The image travels inline as a base64 data URL.
func (c *Client) Describe(ctx context.Context, png []byte, params DescribeParams) (*DescribeResult, error) {
	prompt := params.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	reqBody := chatRequest{
		Model: params.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens: params.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(params.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeLLMFailure, "vision request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeLLMFailure, "failed to read vision response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewCaptureError(models.ErrCodeLLMFailure, "failed to parse vision response", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, models.NewCaptureError(models.ErrCodeLLMFailure, "vision model returned no choices", nil)
	}

	return &DescribeResult{
		Description: strings.TrimSpace(chatResp.Choices[0].Message.Content),
		Usage: &models.LLMUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// classifyError maps provider HTTP status codes to error codes.
func classifyError(statusCode int, body []byte) *models.CaptureError {
	var errResp chatErrorResponse
	msg := "vision API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewCaptureError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewCaptureError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewCaptureError(models.ErrCodeLLMFailure, fmt.Sprintf("vision API returned %d: %s", statusCode, msg), nil)
	}
}
