package ocrhttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/resilience"
)

// Client talks to the OCR sidecar over HTTP. The sidecar is optional
// infrastructure: callers treat any error here as "recognition
// unavailable" and decide whether the job degrades or fails.
type Client struct {
	baseURL    string
	storage    ports.ArtifactStore
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, storage ports.ArtifactStore, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		storage:    storage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type recognizeRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

func (c *Client) Recognize(ctx context.Context, artifact *domain.Artifact) (string, error) {
	reader, err := c.storage.Open(ctx, artifact.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open artifact for recognition: %w", err)
	}
	raw, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return "", fmt.Errorf("read artifact for recognition: %w", err)
	}

	payload := recognizeRequest{
		Filename:      artifact.Filename,
		ContentBase64: base64.StdEncoding.EncodeToString(raw),
	}

	var out recognizeResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/recognize", payload, &out)
	}
	if c.executor != nil {
		err = c.executor.Do(ctx, "ocr_recognize", call, transient)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create ocr health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ocr health status: %s", resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal recognize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr recognize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if trimmed := strings.TrimSpace(string(msg)); trimmed != "" {
			return fmt.Errorf("ocr recognize status: %s: %s", resp.Status, trimmed)
		}
		return fmt.Errorf("ocr recognize status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode recognize response: %w", err)
	}
	return nil
}

// transient marks network-level failures and 5xx statuses as worth a
// retry; malformed requests are not.
func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "status: 5")
}
