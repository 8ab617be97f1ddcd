package identity

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidCredentials is returned when the email is unknown or the
// password does not match. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is an authenticated identity. Consumers treat it as read-only.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Same reports whether a and b denote the same identity. Two nil principals
// are the same; nil and non-nil never are.
func Same(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

// NormalizeEmail trims, NFC-normalizes and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
