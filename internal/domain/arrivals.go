package domain

import "time"

// NewArrivals is the result of a "new since last checked" poll. Since is the
// server's timestamp and becomes the next checkpoint.
type NewArrivals struct {
	Count    int
	Messages []Message
	Since    string
}

// Notification is a transient, dismissible message for the user.
type Notification struct {
	Title   string
	Body    string
	IsError bool
	At      time.Time
}

// Session is the persisted authentication state.
type Session struct {
	UserID string
	Token  string
}
