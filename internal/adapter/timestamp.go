package adapter

import (
	"encoding/json"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999", // naive ISO 8601, assumed UTC
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	"2006-01-02",
}

// ParseDate parses a backend date string, returning the zero time when no
// known layout matches.
func ParseDate(s string) time.Time {
	return parseDate(s)
}

// parseDate tries the formats the backend and Gmail headers produce.
// Unparsable input yields the zero time, which sorts as oldest.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// parseTimestamp accepts an epoch number (seconds or milliseconds) or a date string.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = trimJSON(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
		return parseDate(s)
	}
	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}
	}
	return fromEpoch(n)
}

func fromEpoch(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// bestTime prefers the explicit timestamp, then the date string.
func bestTime(timestamp json.RawMessage, date string) time.Time {
	if t := parseTimestamp(timestamp); !t.IsZero() {
		return t
	}
	return parseDate(date)
}
