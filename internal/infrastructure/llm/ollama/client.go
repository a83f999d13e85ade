package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance. It backs the optional
// richer-summary path; when it misbehaves the summarizer falls back to
// the deterministic template, so errors here are soft.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Render asks the model for a plain-language warranty summary.
func (c *Client) Render(ctx context.Context, record *domain.WarrantyRecord) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": buildSummaryPrompt(record),
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "ollama_generate", call, retryableOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("render summary", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &HTTPStatusError{Operation: "health", StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
