package blob

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and development.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string]Object
	presigner *Presigner
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(presigner *Presigner) *MemoryStore {
	return &MemoryStore{
		objects:   make(map[string]Object),
		presigner: presigner,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = Object{Key: key, ContentType: contentType, Data: stored}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &obj, nil
}

func (s *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.presigner.SignedURL(key, ttl), nil
}
