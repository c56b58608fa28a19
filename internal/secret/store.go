package secret

import (
	"fmt"
	"sync"
)

// SecretStore keeps sensitive settings, such as the workflow store password,
// out of config.json.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// StoreKey is the key of the password for a workflow store account.
func StoreKey(driver, host, user string) string {
	return fmt.Sprintf("store:%s:%s@%s", driver, user, host)
}

// Password returns the stored password for key, or fallback when none is stored.
func Password(s SecretStore, key, fallback string) (string, error) {
	if fallback != "" || s == nil {
		return fallback, nil
	}
	v, err := s.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return string(v), nil
}

// MemoryStore keeps secrets in process memory. Used when no keychain is
// available and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
