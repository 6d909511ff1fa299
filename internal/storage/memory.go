package storage

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process BlobStore used by the standalone records
// binary and by unit tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), baseURL: "memory://blobs"}
}

func (s *MemoryStorage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return s.baseURL + "/" + key, nil
}

// Delete mirrors the object-store contract: removing an absent key is still
// a confirmed removal.
func (s *MemoryStorage) Delete(ctx context.Context, keyOrURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, KeyFromURL(keyOrURL))
	return true
}

// Get returns the stored bytes, for tests.
func (s *MemoryStorage) Get(keyOrURL string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[KeyFromURL(keyOrURL)]
	return b, ok
}

// Len returns the number of stored objects, for tests.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
