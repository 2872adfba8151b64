package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"consult-worker/apperrors"
)

// MemoryStore keeps objects in a map. Used in tests and when running
// without an object store endpoint.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	s.types[key] = contentType
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []Entry
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *MemoryStore) DeleteFolder(ctx context.Context, prefix string) error {
	prefix = strings.TrimSuffix(prefix, "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[prefix]; ok {
		zerolog.Ctx(ctx).Warn().Str("prefix", prefix).Msg("refusing folder delete of non-folder object")
		return nil
	}
	for key := range s.objects {
		if strings.HasPrefix(key, prefix+"/") {
			delete(s.objects, key)
			delete(s.types, key)
		}
	}
	return nil
}
