package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trailcam/internal/logging"
	"trailcam/internal/services"
)

// HTTPOptions configures the HTTP detector backend.
type HTTPOptions struct {
	URL        string
	Token      string
	Timeout    time.Duration
	Categories CategoryMap
	// Client overrides the transport, mainly for tests.
	Client *http.Client
}

// HTTPClient posts frame batches to a detection service that shares the
// filesystem with trailcam and returns the batch JSON shape.
type HTTPClient struct {
	opts   HTTPOptions
	client *http.Client
	logger *slog.Logger
}

type httpRequest struct {
	Files               []string `json:"files"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

// NewHTTPClient constructs an HTTP detector client.
func NewHTTPClient(opts HTTPOptions, logger *slog.Logger) *HTTPClient {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{opts: opts, client: client, logger: logging.NewComponentLogger(logger, "detector")}
}

// Detect implements Client. A transient failure is retried once.
func (c *HTTPClient) Detect(ctx context.Context, paths []string, floor float64) ([]Result, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpRequest{Files: paths, ConfidenceThreshold: floor})
	if err != nil {
		return nil, fmt.Errorf("encode detector request: %w", err)
	}

	started := time.Now()
	payload, err := c.post(ctx, body)
	if services.Retryable(err) && ctx.Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "detector request failed; retrying once", "detector_retry",
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch is retried"),
		)
		payload, err = c.post(ctx, body)
	}
	if err != nil {
		return nil, err
	}
	results, err := Decode(payload, paths, c.opts.Categories)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "detect", c.opts.URL, "decode response", err)
	}
	logBatch(ctx, c.logger, results, time.Since(started))
	return results, nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "detect", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(c.opts.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "detect", c.opts.URL, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "detect", c.opts.URL, "read response", err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrTransient, "detect", c.opts.URL, fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(data)), nil)
	case resp.StatusCode >= 300:
		return nil, services.Wrap(services.ErrExternalTool, "detect", c.opts.URL, fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(data)), nil)
	}
	return data, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
