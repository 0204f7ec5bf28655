package detection_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"trailcam/internal/detection"
	"trailcam/internal/testsupport"
)

func fakeOllama(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	var n int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string   `json:"content"`
				Images  []string `json:"images"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
			t.Errorf("expected one message with one image, got %+v", req.Messages)
		}
		reply := replies[n%len(replies)]
		n++
		body, _ := json.Marshal(map[string]any{
			"model":      req.Model,
			"created_at": "2026-01-01T00:00:00Z",
			"message":    map[string]string{"role": "assistant", "content": reply},
			"done":       true,
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(append(body, '\n'))
	}))
}

func TestOllamaClientParsesFencedReply(t *testing.T) {
	reply := "```json\n{\"detections\":[{\"category\":\"1\",\"conf\":0.66,\"bbox\":[0.1,0.2,0.3,0.4],},],}\n```"
	srv := fakeOllama(t, reply, "I see nothing of interest.")
	defer srv.Close()

	dir := t.TempDir()
	a := filepath.Join(dir, "frame_000001.jpg")
	b := filepath.Join(dir, "frame_000002.jpg")
	testsupport.WriteJPEG(t, a, 32, 32)
	testsupport.WriteJPEG(t, b, 32, 32)

	client, err := detection.NewOllamaClient(detection.OllamaOptions{
		URL:        srv.URL + "/api/chat",
		Model:      "llava:13b",
		Categories: defaultCats,
	}, nil)
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}
	results, err := client.Detect(context.Background(), []string{a, b}, 0.2)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if len(results[0].Detections) != 1 || results[0].Detections[0].Confidence != 0.66 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Failure == "" || !strings.Contains(results[1].Failure, "unparseable") {
		t.Fatalf("prose reply should be a per-frame failure, got %+v", results[1])
	}
}

func TestNewOllamaClientRejectsBadURL(t *testing.T) {
	if _, err := detection.NewOllamaClient(detection.OllamaOptions{URL: "not a url"}, nil); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
