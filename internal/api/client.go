// Package api is the HTTP client for the triage backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
	maxErrorBody   = 512
)

// Client issues authenticated requests against the backend. The bearer
// token is read from the TokenSource on every call.
type Client struct {
	baseURL        string
	tokens         oauth2.TokenSource
	http           *http.Client
	log            logrus.FieldLogger
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the backend at baseURL. tokens may be nil, in
// which case requests carry no Authorization header.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: quiet,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "api")
	return c
}

// SetUnauthorizedHandler registers fn to run on every 401 response,
// before the error reaches the caller. It is set after construction since
// the handler's owner usually needs the client first.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, query, body)
}

func (c *Client) put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": reqID,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	log = log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start).Round(time.Millisecond),
	})

	if resp.StatusCode == http.StatusUnauthorized {
		log.Warn("unauthorized")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, &HTTPError{Method: method, Path: path, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("request returned error status")
		return nil, &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: errorDetail(data)}
	}

	log.Debug("request complete")
	return data, nil
}

// authorize applies the current bearer token, if any.
func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(req)
}

// errorDetail extracts FastAPI's {"detail": ...} message, or a truncated body.
func errorDetail(data []byte) string {
	var env struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Detail != nil {
		if s, ok := env.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(env.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
