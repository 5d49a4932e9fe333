// Package sharelink generates share tokens and maps them to and from public URLs.
//
// A token is the only credential for the public view of a gift map, so it is
// drawn from crypto/rand and carries nothing derived from the owner or person.
package sharelink

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// tokenBytes gives 256 bits of entropy, 43 characters once encoded.
const tokenBytes = 32

// PathPrefix is the public route segment that precedes the token.
const PathPrefix = "/shared/"

var ErrInvalidShareURL = errors.New("invalid share url")

var encoding = base64.RawURLEncoding

// NewToken returns a fresh URL-safe share token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return encoding.EncodeToString(b), nil
}

// ValidToken reports whether s has the shape of a token produced by NewToken.
func ValidToken(s string) bool {
	if len(s) != encoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := encoding.DecodeString(s)
	return err == nil
}

// FormatURL embeds token into the canonical share URL under baseURL.
func FormatURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + PathPrefix + token
}

// ParseURL extracts the token from a URL produced by FormatURL.
func ParseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidShareURL, err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", ErrInvalidShareURL
	}

	idx := strings.LastIndex(u.Path, PathPrefix)
	if idx < 0 {
		return "", ErrInvalidShareURL
	}
	token := u.Path[idx+len(PathPrefix):]
	if !ValidToken(token) {
		return "", ErrInvalidShareURL
	}
	return token, nil
}

// Redact shortens a token for log output.
func Redact(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "..."
}

// RedactPath redacts the token segment of a request path under PathPrefix.
func RedactPath(path string) string {
	idx := strings.Index(path, PathPrefix)
	if idx < 0 {
		return path
	}
	start := idx + len(PathPrefix)
	end := strings.IndexByte(path[start:], '/')
	if end < 0 {
		return path[:start] + Redact(path[start:])
	}
	return path[:start] + Redact(path[start:start+end]) + path[start+end:]
}
