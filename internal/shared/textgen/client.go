package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrorPrefix marks a soft failure returned in place of generated text.
const ErrorPrefix = "[AI Error]"

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 120 * time.Second

// =============================================================================
// Client calls the text generation service.
// Sends one prompt, returns one string. Failures come back as text, never as
// errors, so report generation always completes.
// =============================================================================

// Client talks to the text generation HTTP service.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client. A zero timeout uses DefaultTimeout.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Generate returns the generated text, or a string starting with ErrorPrefix
// that embeds the failure reason.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	result, err := c.generate(ctx, prompt)
	if err != nil {
		return ErrorText(err)
	}
	return result
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bodyBytes, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("service error: %s", result.Error)
	}

	return strings.TrimSpace(result.Result), nil
}

// ErrorText formats err as a soft failure string.
func ErrorText(err error) string {
	return fmt.Sprintf("%s %v", ErrorPrefix, err)
}

// IsSoftFailure reports whether text is a soft failure placeholder.
func IsSoftFailure(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}
