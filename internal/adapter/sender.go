package adapter

import (
	"encoding/json"
	"net/mail"
	"strings"

	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// Placeholder identity for senders that cannot be parsed.
const (
	UnknownName  = "Unknown"
	UnknownEmail = "unknown@unknown.invalid"
)

func unknownSender() domain.Address {
	return domain.Address{Name: UnknownName, Email: UnknownEmail}
}

type wireAddress struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// ParseSender accepts either a structured {name, email} object or a string
// in "Name <email>" or bare-email form.
func ParseSender(raw json.RawMessage) domain.Address {
	raw = trimJSON(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return unknownSender()
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return unknownSender()
		}
		return ParseSenderString(s)
	case '{':
		var w wireAddress
		if err := json.Unmarshal(raw, &w); err != nil {
			return unknownSender()
		}
		email := strings.TrimSpace(w.Email)
		if email == "" {
			email = strings.TrimSpace(w.Address)
		}
		if email == "" {
			return unknownSender()
		}
		return domain.Address{Name: strings.TrimSpace(w.Name), Email: email}
	}
	return unknownSender()
}

// ParseSenderString parses "Name <email>" or a bare email address.
// Falls back to the Unknown placeholder when no address can be found.
func ParseSenderString(s string) domain.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return unknownSender()
	}

	if addr, err := mail.ParseAddress(s); err == nil {
		return domain.Address{Name: addr.Name, Email: addr.Address}
	}

	// Fallback for display names net/mail rejects.
	if idx := strings.LastIndex(s, "<"); idx >= 0 {
		end := strings.Index(s[idx:], ">")
		if end > 0 {
			email := strings.TrimSpace(s[idx+1 : idx+end])
			if strings.Contains(email, "@") {
				name := strings.TrimSpace(s[:idx])
				name = strings.Trim(name, `"'`)
				return domain.Address{Name: strings.Join(strings.Fields(name), " "), Email: email}
			}
		}
	}

	if strings.Contains(s, "@") && !strings.ContainsAny(s, " \t<>") {
		return domain.Address{Email: s}
	}
	return unknownSender()
}

// FormatSender renders a in the server's sender string form. Names with
// characters that are special in RFC 5322 phrases are quoted, as are names
// that look like RFC 2047 encoded-words, which net/mail only decodes outside
// quotes.
func FormatSender(a domain.Address) string {
	name := strings.Join(strings.Fields(a.Name), " ")
	if name == "" {
		return a.Email
	}
	if strings.ContainsAny(name, `()<>[]:;@\,."`) || strings.Contains(name, "=?") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		name = `"` + r.Replace(name) + `"`
	}
	return name + " <" + a.Email + ">"
}

func parseAddressList(raw json.RawMessage) []domain.Address {
	raw = trimJSON(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	addrs := make([]domain.Address, 0, len(items))
	for _, it := range items {
		if a := ParseSender(it); a.Email != UnknownEmail {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
