// internal/config/keyring.go
package config

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "ezquery"

// KeyringStore holds secrets in the system keyring
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore creates a new keyring store instance
func NewKeyringStore() (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// SetPassword stores a secret under key
func (k *KeyringStore) SetPassword(key, secret string) error {
	return k.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(secret),
	})
}

// GetPassword retrieves the secret stored under key
func (k *KeyringStore) GetPassword(key string) (string, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return string(item.Data), nil
}
