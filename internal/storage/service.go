package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"streamvault/internal/configuration"
	"streamvault/internal/metrics"
	"streamvault/internal/types"
)

// Service owns the vault's mapping: mutation, change notification and
// snapshot persistence.
type Service struct {
	store      *Store
	dispatcher *Dispatcher

	listenersMu  sync.RWMutex
	listeners    map[ListenerID]Listener
	nextListener ListenerID

	primary        *snapshotFile
	backup         *snapshotFile
	saveInterval   time.Duration
	backupInterval time.Duration

	stop         chan struct{}
	timers       sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
	closed       atomic.Bool
}

// NewService creates both directories, loads the primary snapshot and starts
// the notification workers. Failing to create a directory is the only
// error; a missing or unreadable snapshot starts the store empty.
func NewService(cfg *configuration.StorageConfigurationProperties) (*Service, error) {
	if err := ensureDirectory(cfg.StorageDir); err != nil {
		slog.Error("failed to create storage directory", "path", cfg.StorageDir, "error", err)
		return nil, err
	}
	if err := ensureDirectory(cfg.BackupDir); err != nil {
		slog.Error("failed to create backup directory", "path", cfg.BackupDir, "error", err)
		return nil, err
	}

	s := &Service{
		store:          NewStore(),
		dispatcher:     NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize),
		listeners:      make(map[ListenerID]Listener),
		primary:        &snapshotFile{target: targetPrimary, path: filepath.Join(cfg.StorageDir, primaryFileName)},
		backup:         &snapshotFile{target: targetBackup, path: filepath.Join(cfg.BackupDir, backupFileName)},
		saveInterval:   cfg.SaveInterval,
		backupInterval: cfg.BackupInterval(),
		stop:           make(chan struct{}),
	}

	s.load()
	slog.Info("storage initialized", "primary", s.primary.path, "backup", s.backup.path, "keys", s.store.Len())
	return s, nil
}

// Start launches the save timer and the backup timer, which runs at twice
// the save interval.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		if s.saveInterval <= 0 {
			slog.Warn("save interval not positive, automatic saving disabled", "interval", s.saveInterval)
			return
		}
		s.runEvery(s.saveInterval, func() { _ = s.Save() })
		s.runEvery(s.backupInterval, func() { _ = s.Backup() })
		slog.Info("automatic saving and backup started", "saveInterval", s.saveInterval, "backupInterval", s.backupInterval)
	})
}

func (s *Service) runEvery(interval time.Duration, fn func()) {
	s.timers.Add(1)
	go func() {
		defer s.timers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-s.stop:
				return
			}
		}
	}()
}

// Put inserts or overwrites key. Every call publishes a change event, even
// when the value is unchanged.
func (s *Service) Put(key string, value types.Scalar) {
	metrics.StorageOperationsTotal.WithLabelValues("put").Inc()
	entry := s.store.Set(key, value)
	metrics.StorageKeysTotal.Set(float64(s.store.Len()))
	s.publish(entry)
}

func (s *Service) Get(key string) (types.Entry, bool) {
	metrics.StorageOperationsTotal.WithLabelValues("get").Inc()
	return s.store.Get(key)
}

// Remove deletes key and publishes a tombstone. Nothing is published when the
// key is absent.
func (s *Service) Remove(key string) (types.Entry, bool) {
	metrics.StorageOperationsTotal.WithLabelValues("remove").Inc()
	removed, ok := s.store.Delete(key)
	if !ok {
		return types.Entry{}, false
	}
	metrics.StorageKeysTotal.Set(float64(s.store.Len()))
	s.publish(types.Tombstone(key))
	return removed, true
}

func (s *Service) GetAll() map[string]types.Entry {
	metrics.StorageOperationsTotal.WithLabelValues("get_all").Inc()
	return s.store.Data()
}

// Clear drops every entry without publishing any change events.
func (s *Service) Clear() int {
	metrics.StorageOperationsTotal.WithLabelValues("clear").Inc()
	removed := s.store.Clear()
	metrics.StorageKeysTotal.Set(float64(s.store.Len()))
	slog.Info("store cleared", "removed", removed)
	return removed
}

func (s *Service) Len() int {
	return s.store.Len()
}

func (s *Service) Subscribe(l Listener) ListenerID {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextListener++
	id := s.nextListener
	s.listeners[id] = l
	slog.Debug("change listener registered", "listener", id)
	return id
}

func (s *Service) Unsubscribe(id ListenerID) bool {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	if _, ok := s.listeners[id]; !ok {
		return false
	}
	delete(s.listeners, id)
	slog.Debug("change listener removed", "listener", id)
	return true
}

func (s *Service) publish(entry types.Entry) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	for id, l := range s.listeners {
		s.dispatcher.Submit(id, l, entry)
	}
}

func (s *Service) Save() error {
	return s.writeSnapshot(s.primary)
}

func (s *Service) Backup() error {
	return s.writeSnapshot(s.backup)
}

// Healthy reports whether the service is still accepting work.
func (s *Service) Healthy() bool {
	return !s.closed.Load()
}

// Shutdown stops the timers, drains pending notifications until ctx ends,
// then writes a final primary snapshot and a final backup regardless of how
// the drain went. Calling it again returns the first result.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)

		timersDone := make(chan struct{})
		go func() {
			s.timers.Wait()
			close(timersDone)
		}()
		select {
		case <-timersDone:
		case <-ctx.Done():
			slog.Warn("autosave timers did not stop in time", "error", ctx.Err())
		}

		if err := s.dispatcher.Stop(ctx); err != nil {
			slog.Warn("notification drain did not finish, remaining deliveries cancelled", "error", err)
		}

		saveErr := s.Save()
		backupErr := s.Backup()
		if saveErr != nil {
			s.shutdownErr = saveErr
		} else {
			s.shutdownErr = backupErr
		}
		slog.Info("store shut down", "keys", s.store.Len())
	})
	return s.shutdownErr
}
