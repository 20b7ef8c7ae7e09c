// Package auth runs the backend's browser login flow and owns logout and
// session-expiry handling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/sirupsen/logrus"
)

const CallbackPath = "/auth/callback"

// Client is the part of the API client used for login and logout.
type Client interface {
	LoginURL(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// SessionStore persists the credentials delivered by the login callback.
type SessionStore interface {
	SetToken(accessToken string) error
	SetUserID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

type Authenticator struct {
	client    Client
	session   SessionStore
	addr      string
	listener  net.Listener
	out       io.Writer
	log       logrus.FieldLogger
	redirects chan struct{}
}

type Option func(*Authenticator)

// WithCallbackAddr sets the local address that receives the login redirect.
func WithCallbackAddr(addr string) Option {
	return func(a *Authenticator) { a.addr = addr }
}

// WithListener serves the callback on an existing listener.
func WithListener(l net.Listener) Option {
	return func(a *Authenticator) { a.listener = l }
}

func WithOutput(w io.Writer) Option {
	return func(a *Authenticator) { a.out = w }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Authenticator) { a.log = l }
}

func New(client Client, session SessionStore, opts ...Option) *Authenticator {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	a := &Authenticator{
		client:    client,
		session:   session,
		addr:      "127.0.0.1:8765",
		out:       os.Stdout,
		log:       quiet,
		redirects: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("component", "auth")
	return a
}

// Login prints the provider consent URL and waits for the backend to
// redirect to the local callback with token and user_id.
func (a *Authenticator) Login(ctx context.Context) (domain.Session, error) {
	listener := a.listener
	if listener == nil {
		l, err := net.Listen("tcp", a.addr)
		if err != nil {
			return domain.Session{}, fmt.Errorf("failed to start callback server: %w", err)
		}
		listener = l
	}

	resultCh := make(chan domain.Session, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := q.Get("token")
		if token == "" {
			msg := q.Get("error")
			if msg == "" {
				msg = "missing token"
			}
			select {
			case errCh <- fmt.Errorf("login callback failed: %s", msg):
			default:
			}
			fmt.Fprint(w, "Login failed. You can close this tab.")
			return
		}
		select {
		case resultCh <- domain.Session{Token: token, UserID: q.Get("user_id")}:
		default:
		}
		fmt.Fprint(w, "Login successful! You can close this tab.")
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	authURL, err := a.client.LoginURL(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	fmt.Fprintf(a.out, "\nOpen this URL in your browser to sign in:\n\n  %s\n\nWaiting for the login redirect on http://%s%s ...\n",
		authURL, listener.Addr(), CallbackPath)

	select {
	case s := <-resultCh:
		if err := a.session.SetToken(s.Token); err != nil {
			return domain.Session{}, fmt.Errorf("failed to save token: %w", err)
		}
		if err := a.session.SetUserID(ctx, s.UserID); err != nil {
			return domain.Session{}, fmt.Errorf("failed to save user id: %w", err)
		}
		a.log.WithField("user_id", s.UserID).Info("logged in")
		return s, nil
	case err := <-errCh:
		return domain.Session{}, err
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// Logout notifies the backend and clears local state. A backend failure
// does not prevent the local session from being cleared.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		a.log.WithError(err).Warn("backend logout failed")
	}
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	a.log.Info("logged out")
	return nil
}

// HandleUnauthorized clears the session and publishes a redirect event.
// It is registered as the API client's 401 handler.
func (a *Authenticator) HandleUnauthorized() {
	if err := a.session.Clear(context.Background()); err != nil {
		a.log.WithError(err).Error("failed to clear session after 401")
	}
	select {
	case a.redirects <- struct{}{}:
	default:
	}
}

// Redirects delivers an event each time the session was cleared by a 401.
// Events coalesce while unread.
func (a *Authenticator) Redirects() <-chan struct{} {
	return a.redirects
}

// ErrNotLoggedIn is returned by commands that need a session when none is stored.
var ErrNotLoggedIn = errors.New("not logged in; run `mailtriage login`")

// ErrSessionExpired is returned once a 401 has cleared the session.
var ErrSessionExpired = errors.New("session expired; run `mailtriage login`")
