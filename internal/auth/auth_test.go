package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClient struct {
	authURL   string
	logoutErr error
	loggedOut bool
}

func (f *fakeClient) LoginURL(context.Context) (string, error) { return f.authURL, nil }

func (f *fakeClient) Logout(context.Context) error {
	f.loggedOut = true
	return f.logoutErr
}

type fakeSession struct {
	mu      sync.Mutex
	token   string
	userID  string
	cleared int
}

func (s *fakeSession) SetToken(tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	return nil
}

func (s *fakeSession) SetUserID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
	return nil
}

func (s *fakeSession) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.userID = "", ""
	s.cleared++
	return nil
}

func startLogin(t *testing.T, a *Authenticator) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := a.Login(context.Background())
		done <- err
	}()
	return done
}

func TestLogin(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	client := &fakeClient{authURL: "https://accounts.example.com/auth"}
	sess := &fakeSession{}
	var out bytes.Buffer
	a := New(client, sess, WithListener(ln), WithOutput(&out))

	done := startLogin(t, a)

	resp, err := http.Get(fmt.Sprintf("http://%s%s?token=jwt-abc&user_id=7", ln.Addr(), CallbackPath))
	if err != nil {
		t.Fatalf("callback request error: %v", err)
	}
	resp.Body.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Login() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Login() did not return")
	}

	if sess.token != "jwt-abc" || sess.userID != "7" {
		t.Errorf("session = %+v", sess)
	}
	if !strings.Contains(out.String(), "https://accounts.example.com/auth") {
		t.Errorf("output = %q, want auth URL", out.String())
	}
}

func TestLoginCallbackError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sess := &fakeSession{}
	a := New(&fakeClient{authURL: "https://x"}, sess, WithListener(ln), WithOutput(&bytes.Buffer{}))

	done := startLogin(t, a)
	resp, err := http.Get(fmt.Sprintf("http://%s%s?error=access_denied", ln.Addr(), CallbackPath))
	if err != nil {
		t.Fatalf("callback request error: %v", err)
	}
	resp.Body.Close()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("Login() error = %v, want access_denied", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Login() did not return")
	}
	if sess.token != "" {
		t.Error("token saved on failed login")
	}
}

func TestLogoutClearsEvenIfBackendFails(t *testing.T) {
	client := &fakeClient{logoutErr: errors.New("offline")}
	sess := &fakeSession{token: "t", userID: "u"}
	a := New(client, sess)

	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if !client.loggedOut || sess.cleared != 1 || sess.token != "" {
		t.Errorf("logout state: client=%v session=%+v", client.loggedOut, sess)
	}
}

func TestHandleUnauthorized(t *testing.T) {
	sess := &fakeSession{token: "t"}
	a := New(&fakeClient{}, sess)

	a.HandleUnauthorized()
	a.HandleUnauthorized()

	if sess.cleared != 2 || sess.token != "" {
		t.Errorf("session = %+v, want cleared twice", sess)
	}
	select {
	case <-a.Redirects():
	default:
		t.Fatal("no redirect event")
	}
	select {
	case <-a.Redirects():
		t.Error("redirect events should coalesce")
	default:
	}
}
