package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamvault/internal/logging"
	"streamvault/internal/metrics"
	"streamvault/internal/types"
)

const (
	primaryFileName = "data.json"
	backupFileName  = "data.json.backup"

	targetPrimary = "primary"
	targetBackup  = "backup"
)

// snapshotFile is one snapshot destination. mu serializes writers so the
// timers, shutdown and admin saves never interleave on the same file.
type snapshotFile struct {
	target string
	path   string
	mu     sync.Mutex
}

func ensureDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirectory, path, err)
	}
	return nil
}

// writeSnapshot serializes whatever the live mapping holds while it is being
// walked and overwrites the file in place. A crash mid-write can leave a
// truncated file.
func (s *Service) writeSnapshot(file *snapshotFile) error {
	file.mu.Lock()
	defer file.mu.Unlock()

	target, path := file.target, file.path
	start := time.Now()

	data, err := json.MarshalIndent(s.store.Data(), "", "  ")
	if err != nil {
		metrics.SnapshotsTotal.WithLabelValues(target, "error").Inc()
		slog.Error("error encoding snapshot", "target", target, "error", err)
		return fmt.Errorf("encode %s snapshot: %w", target, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		metrics.SnapshotsTotal.WithLabelValues(target, "error").Inc()
		slog.Error("error writing snapshot", "target", target, "path", path, "error", err)
		return fmt.Errorf("write %s snapshot: %w", target, err)
	}

	metrics.SnapshotsTotal.WithLabelValues(target, "ok").Inc()
	metrics.SnapshotDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	metrics.SnapshotSize.WithLabelValues(target).Set(float64(len(data)))
	slog.Info("snapshot saved", "target", target, "path", path, "bytes", len(data), logging.Since(start))
	return nil
}

func readSnapshot(path string) (map[string]types.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries map[string]types.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// load merges the primary snapshot into the store. Any failure leaves the
// store empty and is only logged.
func (s *Service) load() {
	entries, err := readSnapshot(s.primary.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("data file not found, starting fresh", "path", s.primary.path)
		return
	}
	if err != nil {
		slog.Error("error loading data from disk, starting empty", "path", s.primary.path, "error", err)
		return
	}

	loaded := 0
	for key, entry := range entries {
		if key == "" || entry.Value.IsNone() {
			slog.Warn("skipping snapshot entry without value", "key", key)
			continue
		}
		s.store.Set(key, entry.Value)
		loaded++
	}

	metrics.StorageKeysTotal.Set(float64(s.store.Len()))
	slog.Info("data loaded from disk", "path", s.primary.path, "keys", loaded)
}
