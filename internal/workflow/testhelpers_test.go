package workflow_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"trailcam/internal/config"
	"trailcam/internal/detection"
	"trailcam/internal/ledger"
	"trailcam/internal/notifications"
	"trailcam/internal/testsupport"
	"trailcam/internal/workflow"
)

// stubDetector answers by frame base name. Frames without an entry get an
// empty result. Like a real detector it drops detections below the floor.
type stubDetector struct {
	mu      sync.Mutex
	byName  map[string][]detection.Detection
	failOn  map[string]error
	panicOn string
	onCall  func()

	calls  int
	floors []float64
	paths  []string
}

func newStubDetector() *stubDetector {
	return &stubDetector{byName: map[string][]detection.Detection{}, failOn: map[string]error{}}
}

func (s *stubDetector) Detect(_ context.Context, paths []string, floor float64) ([]detection.Result, error) {
	s.mu.Lock()
	s.calls++
	s.floors = append(s.floors, floor)
	s.paths = append(s.paths, paths...)
	onCall := s.onCall
	s.mu.Unlock()
	if onCall != nil {
		onCall()
	}

	results := make([]detection.Result, len(paths))
	for i, path := range paths {
		name := filepath.Base(path)
		if name == s.panicOn {
			panic("detector exploded on " + name)
		}
		if err, ok := s.failOn[name]; ok {
			return nil, err
		}
		res := detection.Result{Path: path}
		for _, d := range s.byName[name] {
			if d.Confidence < floor {
				continue
			}
			res.Detections = append(res.Detections, d)
			res.MaxConfidence = max(res.MaxConfidence, d.Confidence)
		}
		results[i] = res
	}
	return results, nil
}

func (s *stubDetector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func primary(conf float64, box detection.Box) detection.Detection {
	return detection.Detection{Category: detection.CategoryPrimary, RawCategory: "1", Confidence: conf, Box: box}
}

func secondary(conf float64, box detection.Box) detection.Detection {
	return detection.Detection{Category: detection.CategorySecondary, RawCategory: "2", Confidence: conf, Box: box}
}

type stubNotifier struct {
	mu        sync.Mutex
	started   []int
	completed []notifications.RunReport
	errors    []string
}

func (s *stubNotifier) NotifyRunStarted(_ context.Context, _ string, items int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, items)
	return nil
}

func (s *stubNotifier) NotifyRunCompleted(_ context.Context, report notifications.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, report)
	return nil
}

func (s *stubNotifier) NotifyError(_ context.Context, err error, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, label+": "+err.Error())
	return nil
}

func (s *stubNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	cfg      *config.Config
	store    *ledger.Store
	detector *stubDetector
	notifier *stubNotifier
	manager  *workflow.Manager
}

// newHarness builds a manager over a temp tree with stubbed ffmpeg/ffprobe
// (1920x1080, 30 fps, 300 frames) whose frames are copies of a 960x540 JPEG.
func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	opts := []testsupport.ConfigOption{testsupport.WithStubbedBinaries()}
	if mutate != nil {
		opts = append(opts, testsupport.WithConfig(mutate))
	}
	cfg := testsupport.NewConfig(t, opts...)
	frame := filepath.Join(testsupport.BaseDir(cfg), "frame.jpg")
	testsupport.WriteJPEG(t, frame, 960, 540)
	t.Setenv("FAKE_FRAME_SOURCE", frame)

	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenLedger(t, cfg),
		detector: newStubDetector(),
		notifier: &stubNotifier{},
	}
	h.manager = workflow.NewManager(cfg, h.store, nil,
		workflow.WithDetector(h.detector),
		workflow.WithNotifier(h.notifier),
	)
	return h
}

func (h *harness) media(rel string) string {
	return filepath.Join(h.cfg.Paths.InputDir, filepath.FromSlash(rel))
}

// run starts a batch, drains its events and waits for the summary.
func (h *harness) run(t *testing.T, ctx context.Context) (workflow.Summary, []workflow.Progress) {
	t.Helper()
	run, err := h.manager.Start(ctx, workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	var events []workflow.Progress
	for ev := range run.Events() {
		events = append(events, ev)
	}
	summary, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return summary, events
}

func outcomeFor(t *testing.T, summary workflow.Summary, rel string) workflow.ItemOutcome {
	t.Helper()
	for _, item := range summary.Items {
		if item.RelPath == rel {
			return item
		}
	}
	t.Fatalf("no outcome for %s in %+v", rel, summary.Items)
	return workflow.ItemOutcome{}
}
