package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"trailcam/internal/logging"
	"trailcam/internal/services"
)

// OllamaOptions configures the vision-model backend.
type OllamaOptions struct {
	URL        string
	Model      string
	Timeout    time.Duration
	Categories CategoryMap
	HTTPClient *http.Client
}

// OllamaClient asks a vision model served by Ollama for detections, one chat
// request per frame.
type OllamaClient struct {
	client *api.Client
	opts   OllamaOptions
	logger *slog.Logger
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// NewOllamaClient constructs a client for the Ollama server at opts.URL. Any
// path on the URL is ignored.
func NewOllamaClient(opts OllamaOptions, logger *slog.Logger) (*OllamaClient, error) {
	parsed, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "detect", "ollama url", fmt.Sprintf("invalid url %q", opts.URL), err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &OllamaClient{
		client: api.NewClient(base, httpClient),
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "detector"),
	}, nil
}

// Detect implements Client. A frame whose reply cannot be parsed yields a
// Result with Failure set; transport errors fail the batch.
func (c *OllamaClient) Detect(ctx context.Context, paths []string, floor float64) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	prompt := c.prompt(floor)
	started := time.Now()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.detectOne(ctx, path, prompt)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	logBatch(ctx, c.logger, results, time.Since(started))
	return results, nil
}

func (c *OllamaClient) detectOne(ctx context.Context, path, prompt string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path, Failure: err.Error()}, nil
	}
	streamFalse := false
	req := &api.ChatRequest{
		Model: c.opts.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(data)},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "detect", "ollama chat", c.opts.Model, err)
	}

	var entry imagePayload
	cleaned := sanitizeModelJSON(content)
	if err := json.Unmarshal([]byte(cleaned), &entry); err != nil {
		return Result{Path: path, Failure: fmt.Sprintf("unparseable model reply: %v", err)}, nil
	}
	return convert(path, entry, c.opts.Categories), nil
}

func (c *OllamaClient) prompt(floor float64) string {
	codes := func(list []string, fallback string) string {
		if len(list) == 0 {
			return fallback
		}
		return strings.Join(list, ", ")
	}
	var b strings.Builder
	b.WriteString("You are a camera-trap detector. Find every animal, person and vehicle in the image.\n")
	fmt.Fprintf(&b, "Use category %s for animals and %s for people or vehicles.\n",
		codes(c.opts.Categories.Primary, "1"), codes(c.opts.Categories.Secondary, "2"))
	fmt.Fprintf(&b, "Report only detections with confidence above %.2f.\n", floor)
	b.WriteString("Reply with JSON only, no prose, in exactly this shape:\n")
	b.WriteString(`{"detections":[{"category":"1","conf":0.87,"bbox":[x,y,width,height]}]}` + "\n")
	b.WriteString("bbox values are fractions of the image width and height, x and y are the top-left corner.\n")
	b.WriteString(`Reply {"detections":[]} when nothing is present.`)
	return b.String()
}

// sanitizeModelJSON strips code fences, comments and trailing commas, then
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
