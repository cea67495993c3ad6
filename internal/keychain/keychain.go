// Package keychain stores model provider API keys in the OS credential store.
package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies the keychain namespace.
const ServiceName = "sqlchat"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("no API key stored")

// Manager provides thread-safe access to stored API keys, one per provider.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the OS keyring. Backends that need interactive passwords are skipped.
func Open() (*Manager, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		PassPrefix:    ServiceName,
		WinCredPrefix: ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func itemKey(provider string) string {
	return "api_key_" + provider
}

// SetAPIKey stores key for provider, replacing any previous value.
func (m *Manager) SetAPIKey(provider, key string) error {
	if key == "" {
		return errors.New("API key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{
		Key:   itemKey(provider),
		Data:  []byte(key),
		Label: fmt.Sprintf("sqlchat %s API key", provider),
	})
}

// APIKey returns the stored key for provider or ErrNotFound.
func (m *Manager) APIKey(provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, err := m.ring.Get(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

// ClearAPIKey removes the stored key for provider. Removing a missing key is not an error.
func (m *Manager) ClearAPIKey(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.ring.Remove(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
