package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// Fixed storage keys.
const (
	tokenName      = "session"
	keyUserID      = "user_id"
	keyLastChecked = "last_checked"
)

// TokenStore is the subset of KeyringTokenStore used by SessionStore.
type TokenStore interface {
	SaveToken(name string, token *oauth2.Token) error
	LoadToken(name string) (*oauth2.Token, error)
	DeleteToken(name string) error
}

// SessionStore keeps the token in the keyring and the rest in kv.
type SessionStore struct {
	tokens TokenStore
	kv     KV
}

func NewSessionStore(tokens TokenStore, kv KV) *SessionStore {
	return &SessionStore{tokens: tokens, kv: kv}
}

func (s *SessionStore) Token() (*oauth2.Token, error) {
	return s.tokens.LoadToken(tokenName)
}

func (s *SessionStore) SetToken(accessToken string) error {
	if accessToken == "" {
		return errors.New("empty access token")
	}
	return s.tokens.SaveToken(tokenName, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// HasToken reports whether a token is stored.
func (s *SessionStore) HasToken() bool {
	tok, err := s.Token()
	return err == nil && tok != nil && tok.AccessToken != ""
}

func (s *SessionStore) UserID(ctx context.Context) (string, error) {
	return s.kv.GetValue(ctx, keyUserID)
}

func (s *SessionStore) SetUserID(ctx context.Context, id string) error {
	return s.kv.SetValue(ctx, keyUserID, id)
}

// LastChecked returns the server timestamp of the last new-mail check, or
// "" if none has been recorded.
func (s *SessionStore) LastChecked(ctx context.Context) (string, error) {
	return s.kv.GetValue(ctx, keyLastChecked)
}

func (s *SessionStore) SetLastChecked(ctx context.Context, ts string) error {
	return s.kv.SetValue(ctx, keyLastChecked, ts)
}

// Clear removes the token, user id and checkpoint. Every key is attempted
// even if an earlier one fails.
func (s *SessionStore) Clear(ctx context.Context) error {
	var errs []error
	if err := s.tokens.DeleteToken(tokenName); err != nil {
		errs = append(errs, err)
	}
	for _, key := range []string{keyUserID, keyLastChecked} {
		if err := s.kv.DeleteValue(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
