package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded in-process store with TTL expiry and LRU
// eviction. Reads refresh recency; expired entries are dropped lazily on
// access and during eviction.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	now     func() time.Time
}

type memoryEntry struct {
	key       string
	payload   []byte
	expiresAt time.Time
}

func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MemoryStore{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.After(s.now()) {
		s.removeLocked(el)
		return nil, false, nil
	}
	s.order.MoveToFront(el)
	return entry.payload, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(ttl)
	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.payload = payload
		entry.expiresAt = expiresAt
		s.order.MoveToFront(el)
		return nil
	}

	for len(s.entries) >= s.maxSize {
		s.evictOneLocked()
	}
	el := s.order.PushFront(&memoryEntry{key: key, payload: payload, expiresAt: expiresAt})
	s.entries[key] = el
	return nil
}

// evictOneLocked prefers an expired entry; otherwise the LRU tail goes.
func (s *MemoryStore) evictOneLocked() {
	now := s.now()
	for el := s.order.Back(); el != nil; el = el.Prev() {
		if !el.Value.(*memoryEntry).expiresAt.After(now) {
			s.removeLocked(el)
			return
		}
	}
	if tail := s.order.Back(); tail != nil {
		s.removeLocked(tail)
	}
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	delete(s.entries, entry.key)
	s.order.Remove(el)
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

func (s *MemoryStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

func (s *MemoryStore) Len(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SetClock overrides the time source; tests only.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }
