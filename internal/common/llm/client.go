// internal/common/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chatbot-backend/internal/common/config"
	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/common/metrics"
)

var (
	ErrRequestFailed     = errors.New("LLM_REQUEST_FAILED")
	ErrTimeout           = errors.New("LLM_TIMEOUT")
	ErrMalformedResponse = errors.New("LLM_RESPONSE_MALFORMED")
)

// Client calls the internal GenAI HTTP API. Both operations are synchronous
// from the caller's point of view; transport and parse failures surface as
// errors and must be handled at the call site.
type Client struct {
	config config.GenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.GenAIConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		logger: log.With(map[string]interface{}{"component": "llm-client"}),
	}
}

// GenerateText sends a free-form prompt and returns the model's text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, "/api/ai/generate", map[string]interface{}{
		"prompt":      prompt,
		"maxTokens":   c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("generate", "error").Inc()
		return "", err
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		metrics.LLMCalls.WithLabelValues("generate", "error").Inc()
		return "", fmt.Errorf("%w: decode error: %v", ErrMalformedResponse, err)
	}

	metrics.LLMCalls.WithLabelValues("generate", "ok").Inc()
	return apiResponse.Text, nil
}

// GenerateStructured sends a prompt that instructs the model to answer with a
// JSON object and returns the decoded object. Callers must validate the
// result before trusting any value in it.
func (c *Client) GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error) {
	body, err := c.post(ctx, "/api/ai/generate-structured", map[string]interface{}{
		"prompt":      prompt,
		"maxTokens":   c.config.MaxTokens,
		"temperature": c.config.Temperature,
		"format":      "json",
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("generate-structured", "error").Inc()
		return nil, err
	}

	var apiResponse struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil || apiResponse.Data == nil {
		metrics.LLMCalls.WithLabelValues("generate-structured", "error").Inc()
		return nil, fmt.Errorf("%w: structured response missing data object", ErrMalformedResponse)
	}

	metrics.LLMCalls.WithLabelValues("generate-structured", "ok").Inc()
	return apiResponse.Data, nil
}

// post performs the API call with bounded retry and exponential backoff.
func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}) ([]byte, error) {
	reqBody, _ := json.Marshal(payload)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, stderrors.NewLLMTimeoutError(path, ErrTimeout)
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.client.Do(req)

		// If the context expired during the request, report timeout immediately.
		if ctx.Err() != nil ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil, stderrors.NewLLMTimeoutError(path, ErrTimeout)
		}

		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		var out bytes.Buffer
		_, err = out.ReadFrom(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		return out.Bytes(), nil
	}

	c.logger.Warn("genai call exhausted retries", map[string]interface{}{
		"path":  path,
		"error": lastErr.Error(),
	})
	return nil, fmt.Errorf("%w: %v", ErrRequestFailed, lastErr)
}
