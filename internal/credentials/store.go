// Package credentials owns the API secret used to authenticate extraction
// requests. The secret lives in platform secure storage behind the Store
// interface; Manager caches it for the process lifetime and broadcasts
// changes to subscribers.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNotFound is returned by a Store when no secret has been saved. It is
// distinct from a storage failure, which surfaces as its own error.
var ErrNotFound = errors.New("credential not found")

// Store persists a single named secret.
type Store interface {
	// Get returns the stored secret, or ErrNotFound when absent.
	Get(ctx context.Context) (string, error)
	// Set replaces the stored secret atomically.
	Set(ctx context.Context, secret string) error
	// Delete removes the stored secret. Deleting an absent secret is not an error.
	Delete(ctx context.Context) error
}

// Manager caches the secret in memory and notifies subscribers on change.
// Reads are value copies, so concurrent extractions never observe a torn
// update.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	secret string
	subs   []chan string
}

// NewManager loads the secret once from the store. A missing secret is not an
// error; storage failures are.
func NewManager(ctx context.Context, store Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	secret, err := store.Get(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("credentials.load_failed", "error", err)
		return nil, err
	}
	m := &Manager{store: store, logger: logger, secret: secret}
	logger.Info("credentials.loaded", "configured", secret != "")
	return m, nil
}

// Get returns the current secret; empty string means unset.
func (m *Manager) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secret
}

// Set persists and replaces the secret. An empty secret clears the stored
// credential. Storage failures are returned and the cached value is left
// untouched.
func (m *Manager) Set(ctx context.Context, secret string) error {
	var err error
	if secret == "" {
		err = m.store.Delete(ctx)
	} else {
		err = m.store.Set(ctx, secret)
	}
	if err != nil {
		m.logger.Error("credentials.store_failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.secret = secret
	subs := make([]chan string, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.logger.Info("credentials.updated", "configured", secret != "")
	for _, ch := range subs {
		select {
		case ch <- secret:
		default: // subscriber is behind; drop rather than block Set
		}
	}
	return nil
}

// Subscribe returns a channel that receives the new secret after every
// successful Set. The channel is buffered; slow subscribers miss
// intermediate values, never the act of change itself for a drained channel.
func (m *Manager) Subscribe() <-chan string {
	ch := make(chan string, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}
