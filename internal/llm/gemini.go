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
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter

	Stats *Stats
}

func NewGeminiClient(apiKey, model string, requestsPerMinute int) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: NewRateLimiter(requestsPerMinute),
		Stats:   NewStats(time.Hour),
	}
}

func (c *GeminiClient) Model() string {
	return c.model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send posts the accumulated turns plus the new prompt and returns the
// model's reply text.
func (c *GeminiClient) Send(ctx context.Context, turns []Turn, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	contents := make([]geminiContent, 0, len(turns)+1)
	for _, t := range turns {
		contents = append(contents, geminiContent{
			Role:  t.Role,
			Parts: []geminiPart{{Text: t.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  RoleUser,
		Parts: []geminiPart{{Text: prompt}},
	})

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Network failures and client timeouts are transient.
		return "", &RequestError{Reason: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()
	c.Stats.Record(time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &RequestError{Reason: fmt.Sprintf("decode response: %s", err), Retryable: false}
	}
	if apiResp.Error != nil {
		return "", &RequestError{
			Status:    apiResp.Error.Code,
			Reason:    fmt.Sprintf("%s: %s", apiResp.Error.Status, apiResp.Error.Message),
			Retryable: false,
		}
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", &RequestError{Reason: "empty response from model", Retryable: false}
	}

	var sb strings.Builder
	for _, p := range apiResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &RequestError{Reason: "model returned no text", Retryable: false}
	}
	return text, nil
}

// classifyStatus maps a non-200 HTTP status to a RequestError. Rate
// limits and server errors are retryable; auth failures and exhausted
// quota are not.
func classifyStatus(status int, body []byte) *RequestError {
	reason := truncate(string(body), 300)
	switch {
	case status == http.StatusTooManyRequests:
		// A 429 that names the daily/billing quota will not recover
		// within the retry window.
		if strings.Contains(strings.ToLower(reason), "quota") {
			return &RequestError{Status: status, Reason: reason, Retryable: false}
		}
		return &RequestError{Status: status, Reason: reason, Retryable: true}
	case status >= 500:
		return &RequestError{Status: status, Reason: reason, Retryable: true}
	default:
		return &RequestError{Status: status, Reason: reason, Retryable: false}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *GeminiClient) Close() {
	c.httpClient.CloseIdleConnections()
}
