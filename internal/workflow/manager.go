package workflow

import (
	"context"
	"log/slog"
	"sync"

	"trailcam/internal/artifacts"
	"trailcam/internal/config"
	"trailcam/internal/detection"
	"trailcam/internal/ledger"
	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/notifications"
	"trailcam/internal/sampler"
)

// FrameSampler extracts the frames of one pass. *sampler.Sampler satisfies it.
type FrameSampler interface {
	Sample(ctx context.Context, item media.Item, req sampler.Request) (*sampler.Pass, error)
}

// Manager coordinates detection runs. It runs at most one batch at a time.
type Manager struct {
	cfg      *config.Config
	store    *ledger.Store
	logger   *slog.Logger
	notifier notifications.Service
	detector detection.Client
	sampler  FrameSampler
	writer   *artifacts.Writer

	mu      sync.Mutex
	running bool
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithDetector replaces the detector built from detection.backend.
func WithDetector(client detection.Client) ManagerOption {
	return func(m *Manager) {
		m.detector = client
	}
}

// WithNotifier replaces the ntfy notifier (used in tests).
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		m.notifier = notifier
	}
}

// WithSampler replaces the ffmpeg-backed frame sampler.
func WithSampler(s FrameSampler) ManagerOption {
	return func(m *Manager) {
		m.sampler = s
	}
}

// NewManager constructs a run manager. The detector is resolved from config
// when the first run starts unless WithDetector supplies one.
func NewManager(cfg *config.Config, store *ledger.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg)
	}
	if m.sampler == nil {
		m.sampler = sampler.New(sampler.OptionsFromConfig(cfg), logger)
	}
	m.writer = artifacts.New(artifacts.OptionsFromConfig(cfg), logger)
	return m
}

// Running reports whether a run is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}

func (m *Manager) resolveDetector() (detection.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detector != nil {
		return m.detector, nil
	}
	client, err := detection.New(m.cfg, m.logger)
	if err != nil {
		return nil, err
	}
	m.detector = client
	return client, nil
}
