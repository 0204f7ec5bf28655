package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"trailcam/internal/fileutil"
	"trailcam/internal/logging"
)

// ErrLocked is returned by Open when another process holds the store.
var ErrLocked = errors.New("tracking file is locked by another run")

const (
	sidecarSuffix = ".strides.json"
	lockSuffix    = ".lock"
)

// Record is one tracked item.
type Record struct {
	Key        string
	Confidence float64
	// Stride is the sampling stride the confidence was measured at. Zero
	// means unknown and ranks as the coarsest.
	Stride    int
	UpdatedAt time.Time
}

// Outcome describes what Record did.
type Outcome string

const (
	OutcomeInserted    Outcome = "inserted"
	OutcomeOverwritten Outcome = "overwritten"
	OutcomeRaised      Outcome = "raised"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeKept        Outcome = "kept"
)

// RecordResult is returned by Store.Record.
type RecordResult struct {
	Outcome  Outcome
	Previous Record
	Current  Record
}

// Changed reports whether the stored value moved.
func (r RecordResult) Changed() bool {
	return r.Outcome == OutcomeInserted || r.Outcome == OutcomeOverwritten || r.Outcome == OutcomeRaised
}

type strideEntry struct {
	Stride    int       `json:"stride"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the confidence tracking file plus its stride sidecar. It holds an
// exclusive lock on <file>.lock from Open until Close.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]Record
	dirty   bool
	closed  bool
}

// Open locks the tracking file at path and loads it. A missing file is an
// empty store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("tracking: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tracking: create directory: %w", err)
	}
	lock := flock.New(path + lockSuffix)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("tracking: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path+lockSuffix)
	}
	s := &Store{
		path:    path,
		lock:    lock,
		logger:  logging.NewComponentLogger(logger, "tracking"),
		records: make(map[string]Record),
	}
	if _, err := s.Load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Path returns the tracking file location.
func (s *Store) Path() string {
	return s.path
}

// Load rereads both files from disk, replacing in-memory state, and returns
// the key to confidence map.
func (s *Store) Load() (map[string]float64, error) {
	loaded, err := readRecords(s.path)
	if err != nil {
		return nil, err
	}
	values, records := loaded.values, loaded.records
	if sideErr := loaded.sidecarErr; sideErr != nil {
		logging.WarnWithContext(s.logger, "stride sidecar unreadable; treating strides as unknown", "tracking_sidecar_invalid",
			logging.String("path", s.path+sidecarSuffix),
			logging.Error(sideErr),
			logging.String(logging.FieldImpact, "tracked items may be sampled again"),
		)
	}

	s.mu.Lock()
	s.records = records
	s.dirty = false
	s.mu.Unlock()
	s.logger.Debug("tracking file loaded", logging.String("path", s.path), logging.Int("records", len(records)))
	return values, nil
}

// Lookup returns the record for key.
func (s *Store) Lookup(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Covers reports whether key was measured at stride or finer. Records with
// unknown stride never cover.
func (s *Store) Covers(key string, stride int) bool {
	rec, ok := s.Lookup(key)
	return ok && rec.Stride > 0 && rec.Stride <= stride
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns a copy of all records keyed by identity.
func (s *Store) Snapshot() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.records)
}

// Record applies a new measurement. A finer stride, or an existing record of
// unknown stride, overwrites. An equal stride keeps the maximum. A coarser
// stride leaves the existing record in place.
func (s *Store) Record(key string, confidence float64, stride int) RecordResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Record{Key: key, Confidence: confidence, Stride: stride, UpdatedAt: time.Now().UTC()}
	prev, ok := s.records[key]
	result := RecordResult{Previous: prev, Current: next}
	switch {
	case !ok:
		result.Outcome = OutcomeInserted
	case prev.Stride == 0 || stride < prev.Stride:
		result.Outcome = OutcomeOverwritten
	case stride == prev.Stride && confidence > prev.Confidence:
		result.Outcome = OutcomeRaised
	case stride == prev.Stride:
		result.Outcome = OutcomeUnchanged
		result.Current = prev
	default:
		result.Outcome = OutcomeKept
		result.Current = prev
	}
	if result.Changed() {
		s.records[key] = result.Current
		s.dirty = true
	}
	return result
}

// Dirty reports whether there are unflushed changes.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush writes the tracking file and its sidecar atomically.
func (s *Store) Flush() error {
	s.mu.Lock()
	values := make(map[string]float64, len(s.records))
	strides := make(map[string]strideEntry, len(s.records))
	for key, rec := range s.records {
		values[key] = rec.Confidence
		if rec.Stride > 0 {
			strides[key] = strideEntry{Stride: rec.Stride, UpdatedAt: rec.UpdatedAt}
		}
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("tracking: encode: %w", err)
	}
	side, err := json.MarshalIndent(strides, "", "  ")
	if err != nil {
		return fmt.Errorf("tracking: encode sidecar: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("tracking: write %s: %w", s.path, err)
	}
	if err := fileutil.WriteFileAtomic(s.path+sidecarSuffix, side, 0o644); err != nil {
		return fmt.Errorf("tracking: write sidecar: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.logger.Debug("tracking file flushed", logging.String("path", s.path), logging.Int("records", len(values)))
	return nil
}

// Close releases the lock without flushing. It is safe to call twice.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("tracking: release lock: %w", err)
	}
	return nil
}

// ReadSnapshot reads the tracking file and its sidecar without taking the
// lock. An unreadable sidecar leaves strides unknown.
func ReadSnapshot(path string) (map[string]Record, error) {
	loaded, err := readRecords(path)
	return loaded.records, err
}

type loadedFile struct {
	values     map[string]float64
	records    map[string]Record
	sidecarErr error
}

func readRecords(path string) (loadedFile, error) {
	values, err := readValues(path)
	if err != nil {
		return loadedFile{}, err
	}
	strides, sideErr := readStrides(path + sidecarSuffix)
	if sideErr != nil {
		strides = nil
	}
	records := make(map[string]Record, len(values))
	for key, conf := range values {
		rec := Record{Key: key, Confidence: conf}
		if entry, ok := strides[key]; ok {
			rec.Stride = entry.Stride
			rec.UpdatedAt = entry.UpdatedAt
		}
		records[key] = rec
	}
	return loadedFile{values: values, records: records, sidecarErr: sideErr}, nil
}

func readValues(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tracking: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]float64{}, nil
	}
	values := map[string]float64{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("tracking: parse %s: %w", path, err)
	}
	return values, nil
}

func readStrides(path string) (map[string]strideEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var strides map[string]strideEntry
	if err := json.Unmarshal(data, &strides); err != nil {
		return nil, err
	}
	return strides, nil
}
