package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/catalog/internal/clock"
)

type MemoryStore struct {
	values Cache[string, []byte]

	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		values: NewTTLCache[string, []byte](WithClock(c)),
		tags:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.values.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl <= 0 {
		return nil
	}
	s.values.Set(key, append([]byte(nil), value...), ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) InvalidateTags(_ context.Context, tags ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		for key := range s.tags[tag] {
			s.values.Delete(key)
		}
		delete(s.tags, tag)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
