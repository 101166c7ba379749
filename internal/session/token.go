// Package session owns the brokerage access-token lifecycle.
//
// A Manager is bound to one account and is the only place that decides
// whether the cached token can be used, needs a probe, or must be renewed.
package session

import (
	"context"
	"sync"
	"time"
)

// NoTokenSentinel is the placeholder value older deployments persisted
// instead of an empty row. It is treated as no token at all.
const NoTokenSentinel = "nothing"

// AuthToken is a bearer token and its absolute expiry.
type AuthToken struct {
	Value     string
	ExpiresAt time.Time
	// Raw is the issuing response body, kept for diagnostics.
	Raw []byte
}

func (t AuthToken) Empty() bool {
	return t.Value == "" || t.Value == NoTokenSentinel
}

// TokenStore persists tokens per account id.
type TokenStore interface {
	Get(ctx context.Context, accountID string) (AuthToken, bool, error)
	Put(ctx context.Context, accountID string, tok AuthToken) error
}

// MemoryStore is a process-local TokenStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]AuthToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]AuthToken)}
}

func (s *MemoryStore) Get(_ context.Context, accountID string) (AuthToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[accountID]
	return tok, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, accountID string, tok AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[accountID] = tok
	return nil
}
