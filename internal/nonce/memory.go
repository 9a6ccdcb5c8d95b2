package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore - in-process store для тестов и single-instance деплоя.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]Record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]Record),
	}
}

// WithClock подменяет источник времени.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Issue(_ context.Context, address string) (Record, error) {
	n, err := generate()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Address:   Normalize(address),
		Nonce:     n,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.records[rec.Address] = rec
	s.mu.Unlock()

	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, address string) (Record, error) {
	key := Normalize(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Expired(s.now()) {
		delete(s.records, key)
		return Record{}, ErrExpired
	}
	return rec, nil
}

func (s *MemoryStore) Consume(_ context.Context, rec Record) error {
	key := Normalize(rec.Address)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[key]
	if !ok || cur.Nonce != rec.Nonce {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}
