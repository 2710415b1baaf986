package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"streamvault/internal/configuration"
	"streamvault/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	entries []types.Entry
}

func (r *recorder) listen(e types.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) snapshot() []types.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Entry(nil), r.entries...)
}

func (r *recorder) count() int {
	return len(r.snapshot())
}

func testConfig(t *testing.T) *configuration.StorageConfigurationProperties {
	t.Helper()
	return &configuration.StorageConfigurationProperties{
		StorageDir:      t.TempDir(),
		BackupDir:       filepath.Join(t.TempDir(), "nested", "backup"),
		SaveInterval:    time.Hour,
		ShutdownTimeout: 5 * time.Second,
		NotifyWorkers:   4,
		NotifyQueueSize: 64,
	}
}

func newTestService(t *testing.T, cfg *configuration.StorageConfigurationProperties) *Service {
	t.Helper()
	svc, err := NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func TestService_PutThenGet(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	svc.Put("temperature", types.Number(21.5))

	entry, ok := svc.Get("temperature")
	require.True(t, ok)
	assert.Equal(t, "temperature", entry.Key)
	assert.Equal(t, "21.5", entry.Value.String())

	svc.Put("temperature", types.String("hot"))
	entry, ok = svc.Get("temperature")
	require.True(t, ok)
	assert.Equal(t, types.String("hot"), entry.Value)
	assert.Equal(t, 1, svc.Len())
}

func TestService_GetMissing(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	_, ok := svc.Get("nope")
	assert.False(t, ok)
}

func TestService_PutAlwaysNotifies(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	svc.Put("k", types.Bool(true))
	svc.Put("k", types.Bool(true))

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	for _, e := range rec.snapshot() {
		assert.Equal(t, types.Entry{Key: "k", Value: types.Bool(true)}, e)
	}
}

func TestService_RemoveExisting(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	svc.Put("k", types.String("v"))

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	removed, ok := svc.Remove("k")
	require.True(t, ok)
	assert.Equal(t, types.String("v"), removed.Value)

	_, ok = svc.Get("k")
	assert.False(t, ok)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, rec.snapshot()[0].IsTombstone())
	assert.Equal(t, "k", rec.snapshot()[0].Key)
}

func TestService_RemoveMissingFiresNothing(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	_, ok := svc.Remove("absent")
	assert.False(t, ok)

	svc.Put("marker", types.Number(1))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return rec.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, "marker", rec.snapshot()[0].Key)
}

func TestService_GetAllIsCopy(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	svc.Put("a", types.Number(1))

	all := svc.GetAll()
	svc.Put("b", types.Number(2))
	svc.Remove("a")

	require.Len(t, all, 1)
	assert.Equal(t, types.Number(1), all["a"].Value)
}

func TestService_ClearFiresNothing(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	svc.Put("a", types.Number(1))
	svc.Put("b", types.Number(2))

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	assert.Equal(t, 2, svc.Clear())
	assert.Equal(t, 0, svc.Len())
	assert.Empty(t, svc.GetAll())
	assert.Never(t, func() bool { return rec.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestService_FailingListenerIsIsolated(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	svc.Subscribe(func(types.Entry) error { return errors.New("boom") })
	svc.Subscribe(func(types.Entry) error { panic("listener bug") })
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	svc.Put("a", types.Number(1))
	svc.Put("b", types.Number(2))

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestService_Unsubscribe(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	rec := &recorder{}
	id := svc.Subscribe(rec.listen)

	require.True(t, svc.Unsubscribe(id))
	assert.False(t, svc.Unsubscribe(id))

	svc.Put("a", types.Number(1))
	assert.Never(t, func() bool { return rec.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestService_SaveAndReload(t *testing.T) {
	cfg := testConfig(t)
	first, err := NewService(cfg)
	require.NoError(t, err)

	first.Put("s", types.String("text"))
	first.Put("n", types.Number(42))
	first.Put("f", types.Number(-0.25))
	first.Put("b", types.Bool(false))
	want := first.GetAll()

	require.NoError(t, first.Shutdown(context.Background()))

	second := newTestService(t, cfg)
	assert.Equal(t, want, second.GetAll())
	assert.Equal(t, 4, second.Len())
}

func TestService_ConcurrentSavesKeepFileValid(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg)
	path := filepath.Join(cfg.StorageDir, primaryFileName)

	for round := 0; round < 50; round++ {
		for i := 0; i < 200; i++ {
			svc.Put(fmt.Sprintf("key-%03d", i), types.String(strings.Repeat("x", 32)))
		}

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				if w == 0 {
					svc.Clear()
					svc.Put("small", types.Bool(true))
				}
				assert.NoError(t, svc.Save())
			}(w)
		}
		wg.Wait()

		_, err := readSnapshot(path)
		require.NoError(t, err, "round %d", round)
	}
}

func TestService_BackupIntervalFromConfig(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg)

	assert.Equal(t, cfg.BackupInterval(), svc.backupInterval)
	assert.Equal(t, 2*cfg.SaveInterval, svc.backupInterval)
}

func TestService_SnapshotIsPrettyPrinted(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg)
	svc.Put("temperature", types.Number(21.5))

	require.NoError(t, svc.Save())

	raw, err := os.ReadFile(filepath.Join(cfg.StorageDir, primaryFileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n  \"temperature\": {"), string(raw))
	assert.JSONEq(t, `{"temperature":{"key":"temperature","value":21.5}}`, string(raw))
}

func TestService_ShutdownWritesPrimaryAndBackup(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewService(cfg)
	require.NoError(t, err)
	svc.Put("k", types.String("v"))

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.False(t, svc.Healthy())

	for _, path := range []string{
		filepath.Join(cfg.StorageDir, primaryFileName),
		filepath.Join(cfg.BackupDir, backupFileName),
	} {
		entries, err := readSnapshot(path)
		require.NoError(t, err, path)
		assert.Equal(t, types.String("v"), entries["k"].Value, path)
	}

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_CorruptSnapshotStartsEmpty(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StorageDir, primaryFileName), []byte(`{"k": {"key":`), 0o644))

	svc := newTestService(t, cfg)
	assert.Equal(t, 0, svc.Len())
}

func TestService_LoadSkipsEntriesWithoutValue(t *testing.T) {
	cfg := testConfig(t)
	content := `{"gone":{"key":"gone","value":null},"kept":{"key":"kept","value":"yes"}}`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StorageDir, primaryFileName), []byte(content), 0o644))

	svc := newTestService(t, cfg)
	assert.Equal(t, 1, svc.Len())
	entry, ok := svc.Get("kept")
	require.True(t, ok)
	assert.Equal(t, types.String("yes"), entry.Value)
}

func TestService_DirectoryCreationFailure(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.StorageDir = filepath.Join(blocker, "storage")

	svc, err := NewService(cfg)
	require.ErrorIs(t, err, ErrDirectory)
	assert.Nil(t, svc)
}

func TestService_AutosaveTimers(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveInterval = 20 * time.Millisecond
	svc := newTestService(t, cfg)
	svc.Put("k", types.Number(7))
	svc.Start()

	require.Eventually(t, func() bool {
		entries, err := readSnapshot(filepath.Join(cfg.StorageDir, primaryFileName))
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		entries, err := readSnapshot(filepath.Join(cfg.BackupDir, backupFileName))
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_ShutdownDrainsNotifications(t *testing.T) {
	cfg := testConfig(t)
	cfg.NotifyWorkers = 1
	svc, err := NewService(cfg)
	require.NoError(t, err)

	rec := &recorder{}
	svc.Subscribe(func(e types.Entry) error {
		time.Sleep(5 * time.Millisecond)
		return rec.listen(e)
	})
	for i := 0; i < 10; i++ {
		svc.Put("k", types.Number(float64(i)))
	}

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Equal(t, 10, rec.count())
}
