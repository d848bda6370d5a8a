package cache

import (
	"container/list"
	"context"
	"sync"
)

// memoryStore is the default in-process Store: an LRU-ordered map with a
// secondary target index for bounded-latency invalidation.
type memoryStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element // key -> element holding *Entry
	order      *list.List               // front = most recently used
	byTarget   map[string]map[string]struct{}
}

// NewMemoryStore creates an in-memory store evicting least-recently-used
// entries once maxEntries is exceeded. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) Store {
	return &memoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		byTarget:   make(map[string]map[string]struct{}),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	s.order.MoveToFront(el)
	entry := el.Value.(*Entry)
	cp := *entry
	return &cp, nil
}

func (s *memoryStore) Put(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	if el, ok := s.entries[entry.Key]; ok {
		old := el.Value.(*Entry)
		s.unindex(old)
		el.Value = &cp
		s.order.MoveToFront(el)
	} else {
		s.entries[entry.Key] = s.order.PushFront(&cp)
	}
	s.index(&cp)

	for s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		s.evictOldest()
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
	return nil
}

func (s *memoryStore) DeleteTarget(_ context.Context, target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.byTarget[target]
	if !ok {
		return 0, nil
	}
	n := 0
	for key := range keys {
		s.remove(key)
		n++
	}
	return n, nil
}

func (s *memoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.byTarget = make(map[string]map[string]struct{})
	s.order.Init()
	return nil
}

// remove deletes a key from the map, the LRU list, and the target index.
// Caller holds the lock.
func (s *memoryStore) remove(key string) {
	el, ok := s.entries[key]
	if !ok {
		return
	}
	entry := el.Value.(*Entry)
	s.order.Remove(el)
	delete(s.entries, key)
	s.unindex(entry)
}

func (s *memoryStore) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.remove(back.Value.(*Entry).Key)
}

func (s *memoryStore) index(entry *Entry) {
	keys, ok := s.byTarget[entry.Target]
	if !ok {
		keys = make(map[string]struct{})
		s.byTarget[entry.Target] = keys
	}
	keys[entry.Key] = struct{}{}
}

func (s *memoryStore) unindex(entry *Entry) {
	if keys, ok := s.byTarget[entry.Target]; ok {
		delete(keys, entry.Key)
		if len(keys) == 0 {
			delete(s.byTarget, entry.Target)
		}
	}
}
