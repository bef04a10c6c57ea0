package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries bounds a Store built without an explicit size.
const DefaultMaxEntries = 1000

// entry is owned by the Store; values are never handed out by reference
// when they are byte slices.
type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Counters are the process-lifetime statistics of a Store.
type Counters struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Sets      uint64 `json:"sets"`
	Deletes   uint64 `json:"deletes"`
	Evictions uint64 `json:"evictions"`
}

// MemoryUsage is a rough estimate of the bytes held by a Store.
type MemoryUsage struct {
	Bytes int    `json:"bytes"`
	KB    string `json:"kb"`
	MB    string `json:"mb"`
}

// StoreStats is a point-in-time view of a Store.
type StoreStats struct {
	Counters
	HitRate     string      `json:"hitRate"`
	Size        int         `json:"size"`
	MaxSize     int         `json:"maxSize"`
	MemoryUsage MemoryUsage `json:"memoryUsage"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now; tests use it to step through expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a bounded in-memory key/value store with per-key TTL and
// least-recently-used eviction. It is safe for concurrent use.
//
// Expiry is checked lazily on every read; Cleanup removes entries that
// expired without being read again.
type Store struct {
	mu       sync.Mutex
	items    *simplelru.LRU[string, *entry]
	capacity int
	now      func() time.Time
	counters Counters
}

// NewStore creates a Store holding at most maxSize entries (minimum 1).
func NewStore(maxSize int, opts ...StoreOption) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	// Evictions are counted from Add and Resize results; simplelru also
	// fires its callback on Remove, so none is registered.
	items, _ := simplelru.NewLRU[string, *entry](maxSize, nil)
	s := &Store{
		items:    items,
		capacity: maxSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key for ttl, evicting the least recently used
// entry first when key is new and the store is full. Re-setting a key
// replaces its value and expiry and marks it recently used. A non-positive
// ttl uses DefaultTTL.Remote.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL.Remote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := s.items.Add(key, &entry{
		value:     copyValue(value),
		storedAt:  now,
		expiresAt: now.Add(ttl),
	})
	if evicted {
		s.counters.Evictions++
		s.counters.Deletes++
	}
	s.counters.Sets++
	return true
}

// Get returns the value under key. An expired entry is removed and reported
// as a miss.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items.Peek(key)
	if !ok {
		s.counters.Misses++
		return nil, false
	}
	if e.expired(s.now()) {
		s.deleteLocked(key)
		s.counters.Misses++
		return nil, false
	}

	s.items.Get(key)
	s.counters.Hits++
	return copyValue(e.value), true
}

// Has reports whether key holds a live entry. It does not change recency or
// hit/miss counters; an expired entry is removed as a delete.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items.Peek(key)
	if !ok {
		return false
	}
	if e.expired(s.now()) {
		s.deleteLocked(key)
		return false
	}
	return true
}

// Delete removes key and reports whether an entry was removed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(key)
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (s *Store) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) && s.deleteLocked(key) {
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.Deletes += uint64(s.items.Len())
	s.items.Purge()
}

// Keys returns the live keys, sorted, optionally filtered to those
// containing pattern.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]string, 0, s.items.Len())
	for _, key := range s.items.Keys() {
		if e, ok := s.items.Peek(key); !ok || e.expired(now) {
			continue
		}
		if pattern == "" || strings.Contains(key, pattern) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a snapshot of live key/value pairs.
func (s *Store) Entries() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(map[string]interface{}, s.items.Len())
	for _, key := range s.items.Keys() {
		if e, ok := s.items.Peek(key); ok && !e.expired(now) {
			out[key] = copyValue(e.value)
		}
	}
	return out
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

// MaxSize returns the current capacity.
func (s *Store) MaxSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// SetMaxSize changes the capacity, evicting until the store fits.
func (s *Store) SetMaxSize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.capacity = maxSize
	evicted := uint64(s.items.Resize(maxSize))
	s.counters.Evictions += evicted
	s.counters.Deletes += evicted
}

// Cleanup removes every expired entry and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.items.Keys() {
		if e, ok := s.items.Peek(key); ok && e.expired(now) && s.deleteLocked(key) {
			removed++
		}
	}
	return removed
}

// Counters returns a copy of the raw counters.
func (s *Store) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Stats returns counters plus size, hit rate and a memory estimate.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	hitRate := "0.00%"
	if total := s.counters.Hits + s.counters.Misses; total > 0 {
		hitRate = fmt.Sprintf("%.2f%%", float64(s.counters.Hits)/float64(total)*100)
	}

	return StoreStats{
		Counters:    s.counters,
		HitRate:     hitRate,
		Size:        s.items.Len(),
		MaxSize:     s.capacity,
		MemoryUsage: s.memoryUsageLocked(),
	}
}

func (s *Store) deleteLocked(key string) bool {
	if !s.items.Remove(key) {
		return false
	}
	s.counters.Deletes++
	return true
}

// 2 bytes per key/value character plus 32 bytes of bookkeeping per entry.
func (s *Store) memoryUsageLocked() MemoryUsage {
	total := 0
	for _, key := range s.items.Keys() {
		e, _ := s.items.Peek(key)
		total += len(key) * 2
		total += valueSize(e.value) * 2
		total += 32
	}
	return MemoryUsage{
		Bytes: total,
		KB:    fmt.Sprintf("%.2f", float64(total)/1024),
		MB:    fmt.Sprintf("%.2f", float64(total)/1024/1024),
	}
}

func valueSize(v interface{}) int {
	switch val := v.(type) {
	case nil:
		return 0
	case []byte:
		return len(val)
	case json.RawMessage:
		return len(val)
	case string:
		return len(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return 0
		}
		return len(data)
	}
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return append([]byte(nil), val...)
	case json.RawMessage:
		return append(json.RawMessage(nil), val...)
	default:
		return v
	}
}
