// Package downloads parks rendered documents under short-lived random tokens
// so a page can open them in a new tab. Every handle is released a fixed
// interval after creation whether or not it was fetched.
package downloads

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phillip-england/transitops/internal/backend"
)

const DefaultTTL = 60 * time.Second

var ErrNotFound = errors.New("download expired or unknown")

type Store interface {
	Put(ctx context.Context, doc backend.Document) (string, error)
	Get(ctx context.Context, token string) (backend.Document, error)
}

// MemoryStore keeps documents in process. Suitable for a single console
// instance.
type MemoryStore struct {
	ttl  time.Duration
	mu   sync.Mutex
	docs map[string]backend.Document
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, docs: map[string]backend.Document{}}
}

func (s *MemoryStore) Put(_ context.Context, doc backend.Document) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	s.docs[token] = doc
	s.mu.Unlock()

	time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		delete(s.docs, token)
		s.mu.Unlock()
	})
	return token, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (backend.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[token]
	if !ok {
		return backend.Document{}, ErrNotFound
	}
	return doc, nil
}

// Len is the number of live handles.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
