package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const serviceName = "mailtriage"

// ErrNoToken is returned when no token has been stored.
var ErrNoToken = errors.New("no token stored")

// KeyringTokenStore persists bearer tokens in the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
type KeyringTokenStore struct{}

func NewKeyringTokenStore() *KeyringTokenStore {
	return &KeyringTokenStore{}
}

// SaveToken stores token in the OS keyring under name.
func (k *KeyringTokenStore) SaveToken(name string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(serviceName, name, string(data)); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// LoadToken returns the token stored under name, or ErrNoToken.
func (k *KeyringTokenStore) LoadToken(name string) (*oauth2.Token, error) {
	data, err := keyring.Get(serviceName, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token from keyring: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes the token stored under name. A missing token is not an error.
func (k *KeyringTokenStore) DeleteToken(name string) error {
	err := keyring.Delete(serviceName, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// TokenSource returns an oauth2.TokenSource that reads the keyring on
// every call, so a rotated token is picked up without restarting.
func (k *KeyringTokenStore) TokenSource(name string) oauth2.TokenSource {
	return tokenSourceFunc(func() (*oauth2.Token, error) {
		return k.LoadToken(name)
	})
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }
