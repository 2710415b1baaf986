package subscription

import (
	"errors"
	"sort"
	"sync"

	"streamvault/internal/metrics"
	"streamvault/internal/transport"
)

var ErrNoSubscription = errors.New("no active subscription")

// Registry maps keys to the connections interested in them. A key is present
// only while at least one connection is subscribed to it. Connections are
// borrowed from the transport; the registry never closes them.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[transport.Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[transport.Conn]struct{})}
}

// Subscribe is idempotent. It reports whether conn was newly added.
func (r *Registry) Subscribe(conn transport.Conn, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[key]
	if !ok {
		set = make(map[transport.Conn]struct{})
		r.subs[key] = set
	}
	if _, exists := set[conn]; exists {
		return false
	}
	set[conn] = struct{}{}
	metrics.SubscribedKeys.Set(float64(len(r.subs)))
	return true
}

func (r *Registry) Unsubscribe(conn transport.Conn, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[key]
	if !ok {
		return ErrNoSubscription
	}
	if _, exists := set[conn]; !exists {
		return ErrNoSubscription
	}

	delete(set, conn)
	if len(set) == 0 {
		delete(r.subs, key)
	}
	metrics.SubscribedKeys.Set(float64(len(r.subs)))
	return nil
}

// RemoveEverywhere drops conn from every key and returns the keys it was
// subscribed to.
func (r *Registry) RemoveEverywhere(conn transport.Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for key, set := range r.subs {
		if _, exists := set[conn]; !exists {
			continue
		}
		delete(set, conn)
		removed = append(removed, key)
		if len(set) == 0 {
			delete(r.subs, key)
		}
	}
	metrics.SubscribedKeys.Set(float64(len(r.subs)))

	sort.Strings(removed)
	return removed
}

// SubscribersOf returns a copy of the current subscriber set of key.
func (r *Registry) SubscribersOf(key string) []transport.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.subs[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]transport.Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
