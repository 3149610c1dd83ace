package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haskel/agupredict/internal/stats"
)

// Data represents the persisted data structure.
type Data struct {
	Version    int                              `json:"version"`
	UpdatedAt  time.Time                        `json:"updated_at"`
	Operations map[string]*stats.OperationStats `json:"operations"`
}

const (
	currentVersion = 1
	dataFileName   = "agupredict_stats.json"
)

// Storage keeps invocation statistics on disk between restarts. Writes
// are batched: updates mark the data dirty and a background loop flushes.
type Storage struct {
	dataDir       string
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	data   *Data
	dirty  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Storage instance.
func New(dataDir string, flushInterval time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		dataDir:       dataDir,
		flushInterval: flushInterval,
		logger:        logger,
		data:          newEmptyData(),
		done:          make(chan struct{}),
	}
}

func newEmptyData() *Data {
	return &Data{
		Version:    currentVersion,
		UpdatedAt:  time.Now(),
		Operations: make(map[string]*stats.OperationStats),
	}
}

// Load loads data from disk. A missing or unreadable file starts fresh.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := filepath.Join(s.dataDir, dataFileName)

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no existing stats file, starting fresh", "path", filePath)
			s.data = newEmptyData()
			return nil
		}
		return err
	}
	defer file.Close()

	var data Data
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		s.logger.Warn("failed to decode stats file, starting fresh", "error", err)
		s.data = newEmptyData()
		return nil
	}

	if data.Version > currentVersion {
		s.logger.Warn("stats file version is newer than supported, starting fresh",
			"file_version", data.Version,
			"supported_version", currentVersion,
		)
		s.data = newEmptyData()
		return nil
	}

	if data.Operations == nil {
		data.Operations = make(map[string]*stats.OperationStats)
	}

	s.data = &data
	s.logger.Info("loaded stats from disk",
		"path", filePath,
		"operations", len(data.Operations),
	)

	return nil
}

// Save saves data to disk.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked()
}

func (s *Storage) saveLocked() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	filePath := filepath.Join(s.dataDir, dataFileName)
	tempPath := filePath + ".tmp"

	s.data.UpdatedAt = time.Now()

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		return err
	}

	s.dirty = false
	s.logger.Debug("saved stats to disk", "path", filePath)

	return nil
}

// Start starts the periodic flush goroutine.
func (s *Storage) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.flushLoop(ctx)
}

// Stop stops the periodic flush and saves final state.
func (s *Storage) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	return s.Save()
}

func (s *Storage) flushLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.IsDirty() {
				if err := s.Save(); err != nil {
					s.logger.Error("failed to save stats", "error", err)
				}
			}
		}
	}
}

// AllStats returns a copy of the persisted statistics in the tracker's shape.
func (s *Storage) AllStats() *stats.AllStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &stats.AllStats{
		Operations: make(map[string]*stats.OperationStats, len(s.data.Operations)),
	}
	for op, v := range s.data.Operations {
		copied := *v
		result.Operations[op] = &copied
		result.Invocations += v.Count
	}
	return result
}

// UpdateOperation stores the latest snapshot for one operation. It has
// the shape of a stats.Observer.
func (s *Storage) UpdateOperation(snapshot *stats.OperationStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Operations[snapshot.Operation] = snapshot
	s.dirty = true
}

// IsDirty returns whether data has unsaved changes.
func (s *Storage) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// OperationCount returns the number of tracked operations.
func (s *Storage) OperationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Operations)
}
