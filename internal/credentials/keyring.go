package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "expense-agent"
	keyringKey     = "openai-api-key"
)

// KeyringStore keeps the secret in the platform keychain (Keychain on macOS,
// Secret Service on Linux, Credential Manager on Windows).
type KeyringStore struct {
	service string
	key     string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService, key: keyringKey}
}

func (s *KeyringStore) Get(_ context.Context) (string, error) {
	secret, err := keyring.Get(s.service, s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return secret, nil
}

func (s *KeyringStore) Set(_ context.Context, secret string) error {
	if err := keyring.Set(s.service, s.key, secret); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete(_ context.Context) error {
	if err := keyring.Delete(s.service, s.key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	secret string
	set    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (string, error) {
	if !s.set {
		return "", ErrNotFound
	}
	return s.secret, nil
}

func (s *MemoryStore) Set(_ context.Context, secret string) error {
	s.secret = secret
	s.set = true
	return nil
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.secret = ""
	s.set = false
	return nil
}
