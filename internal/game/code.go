package game

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewCode returns a random game code without ambiguous characters.
func NewCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAA"
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}

// NormalizeCode upper-cases a game code and checks its shape.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != CodeLength {
		return "", ErrInvalidCode
	}
	for _, r := range normalized {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return "", ErrInvalidCode
	}
	return normalized, nil
}

func newSessionID() string {
	return uuid.NewString()
}

func newHostToken() string {
	return uuid.NewString()
}
