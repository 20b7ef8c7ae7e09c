package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoginURL returns the provider consent URL the user must visit.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/api/auth/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to start login: %w", err)
	}
	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", &ParseError{What: "login response", Err: err})
	}
	if resp.AuthURL == "" {
		return "", errors.New("login response has no auth_url")
	}
	return resp.AuthURL, nil
}

// Logout tells the backend the session is over. The backend keeps no
// server-side session, so callers treat failure as non-fatal.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.post(ctx, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// User is the authenticated backend user.
type User struct {
	ID    json.Number `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"full_name"`
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	data, err := c.get(ctx, "/api/auth/me", nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("failed to decode current user: %w", &ParseError{What: "user", Err: err})
	}
	return u, nil
}
