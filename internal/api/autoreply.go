package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/adapter"
)

// AutoReplyConfig controls the backend's automatic replies.
type AutoReplyConfig struct {
	Enabled            bool   `json:"enabled"`
	MaxThreadsPerCheck int    `json:"max_threads_per_check"`
	Signature          string `json:"auto_reply_signature,omitempty"`
	UseGmailResponder  bool   `json:"is_using_gmail_responder"`
}

type RateLimit struct {
	Status     string `json:"status"`
	RetryAfter string `json:"retry_after"`
}

// AutoReplyStatus reports what the auto-replier has done so far.
type AutoReplyStatus struct {
	Enabled          bool       `json:"enabled"`
	LastCheck        string     `json:"last_check_time"`
	TotalRepliesSent int        `json:"total_replies_sent"`
	RateLimit        *RateLimit `json:"rate_limit"`
}

// LastCheckTime parses LastCheck; zero when the backend has not checked yet.
func (s AutoReplyStatus) LastCheckTime() time.Time {
	return adapter.ParseDate(s.LastCheck)
}

func (c *Client) AutoReplyConfig(ctx context.Context) (AutoReplyConfig, error) {
	data, err := c.get(ctx, "/api/auto-reply/config", nil)
	if err != nil {
		return AutoReplyConfig{}, fmt.Errorf("failed to get auto-reply config: %w", err)
	}
	return decodeAutoReplyConfig(data)
}

// SetAutoReplyConfig replaces the auto-reply config and returns what the
// backend stored.
func (c *Client) SetAutoReplyConfig(ctx context.Context, cfg AutoReplyConfig) (AutoReplyConfig, error) {
	data, err := c.put(ctx, "/api/auto-reply/config", cfg)
	if err != nil {
		return AutoReplyConfig{}, fmt.Errorf("failed to update auto-reply config: %w", err)
	}
	return decodeAutoReplyConfig(data)
}

func (c *Client) AutoReplyStatus(ctx context.Context) (AutoReplyStatus, error) {
	data, err := c.get(ctx, "/api/auto-reply/status", nil)
	if err != nil {
		return AutoReplyStatus{}, fmt.Errorf("failed to get auto-reply status: %w", err)
	}
	var s AutoReplyStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return AutoReplyStatus{}, fmt.Errorf("failed to decode auto-reply status: %w", &ParseError{What: "auto-reply status", Err: err})
	}
	return s, nil
}

func decodeAutoReplyConfig(data []byte) (AutoReplyConfig, error) {
	var cfg AutoReplyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AutoReplyConfig{}, fmt.Errorf("failed to decode auto-reply config: %w", &ParseError{What: "auto-reply config", Err: err})
	}
	return cfg, nil
}
