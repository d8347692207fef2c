package audit

import (
	"context"
	"slices"
	"sync"
)

// Store persists audit reports. Listings return reports in arrival order.
type Store interface {
	SaveInsecure(ctx context.Context, r *InsecureReport) error
	SaveSecure(ctx context.Context, r *SecureReport) error
	ListInsecure(ctx context.Context) ([]*InsecureReport, error)
	ListSecure(ctx context.Context) ([]*SecureReport, error)
	Close() error
}

// InMemoryStore implements Store for tests and throwaway demos.
type InMemoryStore struct {
	mu       sync.RWMutex
	insecure []*InsecureReport
	secure   []*SecureReport
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// SaveInsecure appends r.
func (s *InMemoryStore) SaveInsecure(_ context.Context, r *InsecureReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.insecure = append(s.insecure, &cp)
	return nil
}

// SaveSecure appends r.
func (s *InMemoryStore) SaveSecure(_ context.Context, r *SecureReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.secure = append(s.secure, &cp)
	return nil
}

// ListInsecure returns all raw value reports.
func (s *InMemoryStore) ListInsecure(context.Context) ([]*InsecureReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.insecure), nil
}

// ListSecure returns all masked value reports.
func (s *InMemoryStore) ListSecure(context.Context) ([]*SecureReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.secure), nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
