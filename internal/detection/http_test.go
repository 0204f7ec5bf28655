package detection_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trailcam/internal/detection"
	"trailcam/internal/services"
)

func TestHTTPClientPostsBatch(t *testing.T) {
	var got struct {
		Files               []string `json:"files"`
		ConfidenceThreshold float64  `json:"confidence_threshold"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintf(w, `{"images":[{"file":%q,"max_detection_conf":0.8,"detections":[{"category":"1","conf":0.8,"bbox":[0.2,0.2,0.1,0.1]}]}]}`, got.Files[0])
	}))
	defer srv.Close()

	client := detection.NewHTTPClient(detection.HTTPOptions{
		URL:        srv.URL,
		Token:      "secret",
		Timeout:    5 * time.Second,
		Categories: defaultCats,
	}, nil)
	results, err := client.Detect(context.Background(), []string{"/frames/a.jpg", "/frames/b.jpg"}, 0.25)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.ConfidenceThreshold != 0.25 || len(got.Files) != 2 {
		t.Fatalf("unexpected request body %+v", got)
	}
	if len(results) != 2 || len(results[0].Detections) != 1 || len(results[1].Detections) != 0 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestHTTPClientRetriesTransientOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := detection.NewHTTPClient(detection.HTTPOptions{URL: srv.URL, Categories: defaultCats}, nil)
	if _, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPClientClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := detection.NewHTTPClient(detection.HTTPOptions{URL: srv.URL, Categories: defaultCats}, nil)
	_, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
