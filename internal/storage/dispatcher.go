package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"streamvault/internal/metrics"
	"streamvault/internal/types"
)

type Listener func(types.Entry) error

type ListenerID uint64

type delivery struct {
	id       ListenerID
	listener Listener
	entry    types.Entry
}

// Dispatcher runs listener deliveries on a fixed pool of workers fed by a
// bounded queue. Each (event, listener) pair is an independent task, so with
// more than one worker two events may be delivered in either order, even for
// the same key.
type Dispatcher struct {
	queue     chan delivery
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	cancelled atomic.Bool
	// drops in the current overflow burst
	dropping atomic.Int64
}

func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		slog.Warn("dispatcher needs at least one worker, using 1", "requested", workers)
		workers = 1
	}
	if queueSize <= 0 {
		slog.Warn("dispatcher queue can't be smaller than 1, using 1", "requested", queueSize)
		queueSize = 1
	}

	d := &Dispatcher{queue: make(chan delivery, queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}

	slog.Debug("notification dispatcher started", "workers", workers, "queueSize", queueSize)
	return d
}

// Submit never blocks. It reports false when the delivery was dropped
// because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Submit(id ListenerID, l Listener, entry types.Entry) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.NotificationsTotal.WithLabelValues("rejected").Inc()
		return false
	}

	select {
	case d.queue <- delivery{id: id, listener: l, entry: entry}:
		metrics.NotifyQueueDepth.Inc()
		if dropped := d.dropping.Swap(0); dropped > 0 {
			slog.Warn("notification queue accepting again", "dropped", dropped)
		}
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		if d.dropping.Add(1) == 1 {
			slog.Error("notification queue full, dropping deliveries until it drains", "key", entry.Key, "listener", id, "capacity", cap(d.queue))
		} else {
			slog.Debug("notification dropped", "key", entry.Key, "listener", id)
		}
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for task := range d.queue {
		metrics.NotifyQueueDepth.Dec()
		if d.cancelled.Load() {
			metrics.NotificationsTotal.WithLabelValues("cancelled").Inc()
			continue
		}
		d.deliver(task)
	}
}

func (d *Dispatcher) deliver(task delivery) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			slog.Error("listener panicked", "listener", task.id, "key", task.entry.Key, "error", fmt.Errorf("%v", r))
		}
	}()

	if err := task.listener(task.entry); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		slog.Warn("error notifying listener", "listener", task.id, "key", task.entry.Key, "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
}

// Stop refuses new deliveries and waits for the queue to drain. If ctx ends
// first, deliveries still queued are discarded and ctx.Err() is returned;
// a listener already running is left to finish on its own.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancelled.Store(true)
		return ctx.Err()
	}
}
