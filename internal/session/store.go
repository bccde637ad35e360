// Package session implements the token-to-session table backing bearer
// authentication. Tokens are opaque 32-byte values from crypto/rand,
// rendered as hex.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Store is the session table contract. Lookup returns (nil, nil) for an
// unknown token; Destroy is a no-op for an unknown token.
type Store interface {
	Create(ctx context.Context, username string) (*Session, error)
	Lookup(ctx context.Context, token string) (*Session, error)
	Destroy(ctx context.Context, token string) error
}

// Session is one live login
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// GenerateToken returns a fresh 64-character hex token from a
// cryptographically strong source. No collision check is performed; 256
// bits of entropy make one vanishingly unlikely.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MemoryStore keeps sessions in an in-process map. With ttl == 0 sessions
// live until explicit logout or process restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewMemoryStore creates an in-memory session store. A zero ttl disables
// expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session for username and returns it
func (ms *MemoryStore) Create(ctx context.Context, username string) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:     token,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	ms.mu.Lock()
	ms.sessions[token] = session
	ms.mu.Unlock()

	return session, nil
}

// Lookup returns the session for token, or nil when the token is unknown
// or the session has expired
func (ms *MemoryStore) Lookup(ctx context.Context, token string) (*Session, error) {
	ms.mu.RLock()
	session, ok := ms.sessions[token]
	ms.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if ms.ttl > 0 && time.Since(session.CreatedAt) > ms.ttl {
		ms.mu.Lock()
		delete(ms.sessions, token)
		ms.mu.Unlock()
		return nil, nil
	}

	return session, nil
}

// Destroy removes the session for token if present
func (ms *MemoryStore) Destroy(ctx context.Context, token string) error {
	ms.mu.Lock()
	delete(ms.sessions, token)
	ms.mu.Unlock()
	return nil
}
