package storage

import (
	"sync"
	"sync/atomic"

	"streamvault/internal/types"
)

// Store is the key -> Entry mapping. Every operation is atomic for its key;
// entries are immutable values replaced wholesale, so a reader never sees a
// partially written entry. Range is weakly consistent: it may or may not
// reflect mutations that run concurrently with it.
type Store struct {
	data sync.Map
	size atomic.Int64
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Set(key string, value types.Scalar) types.Entry {
	entry := types.Entry{Key: key, Value: value}
	if _, loaded := s.data.Swap(key, entry); !loaded {
		s.size.Add(1)
	}
	return entry
}

func (s *Store) Get(key string) (types.Entry, bool) {
	v, ok := s.data.Load(key)
	if !ok {
		return types.Entry{}, false
	}
	return v.(types.Entry), true
}

func (s *Store) Delete(key string) (types.Entry, bool) {
	v, loaded := s.data.LoadAndDelete(key)
	if !loaded {
		return types.Entry{}, false
	}
	s.size.Add(-1)
	return v.(types.Entry), true
}

func (s *Store) Range(fn func(types.Entry) bool) {
	s.data.Range(func(_, v any) bool {
		return fn(v.(types.Entry))
	})
}

// Data copies the mapping. The copy is detached from later mutations.
func (s *Store) Data() map[string]types.Entry {
	out := make(map[string]types.Entry, s.Len())
	s.Range(func(e types.Entry) bool {
		out[e.Key] = e
		return true
	})
	return out
}

// Clear deletes every entry it observes and returns how many it removed.
func (s *Store) Clear() int {
	removed := 0
	s.data.Range(func(k, _ any) bool {
		if _, loaded := s.data.LoadAndDelete(k); loaded {
			s.size.Add(-1)
			removed++
		}
		return true
	})
	return removed
}

func (s *Store) Len() int {
	return int(s.size.Load())
}
