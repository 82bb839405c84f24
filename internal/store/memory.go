package store

import (
	"context"
	"fmt"
	"sync"
)

// MemorySurfaces is the in-process surface cache, used when no REDIS_URL is
// configured and by tests.
type MemorySurfaces struct {
	mu sync.RWMutex
	m  map[string]Surface
}

func NewMemorySurfaces() *MemorySurfaces {
	return &MemorySurfaces{m: make(map[string]Surface)}
}

func memKey(sessionID string, page int) string { return fmt.Sprintf("%s/%d", sessionID, page) }

func (s *MemorySurfaces) Save(_ context.Context, sessionID string, page int, sf Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[memKey(sessionID, page)] = sf
	return nil
}

func (s *MemorySurfaces) Get(_ context.Context, sessionID string, page int) (Surface, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.m[memKey(sessionID, page)]
	return sf, ok, nil
}

func (s *MemorySurfaces) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := sessionID + "/"
	for k := range s.m {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(s.m, k)
		}
	}
	return nil
}

func (s *MemorySurfaces) Close() error { return nil }

// MemoryStatus is the in-process status store counterpart.
type MemoryStatus struct {
	mu sync.RWMutex
	m  map[string]SessionStatus
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{m: make(map[string]SessionStatus)}
}

func (s *MemoryStatus) Set(_ context.Context, sessionID string, st SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionID] = st
	return nil
}

func (s *MemoryStatus) Get(_ context.Context, sessionID string) (SessionStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[sessionID]
	return st, ok, nil
}

func (s *MemoryStatus) Close() error { return nil }
