// Package ids generates identifiers for cards and relations.
package ids

import (
	"github.com/gofrs/uuid/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	cardAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	cardIDLen    = 12
)

// NewCardID returns a short URL-safe card id.
func NewCardID() (string, error) {
	return gonanoid.Generate(cardAlphabet, cardIDLen)
}

// NewRelationID returns a random relation id.
func NewRelationID() (uuid.UUID, error) {
	return uuid.NewV4()
}

// ValidCardID reports whether s looks like an id produced by NewCardID.
func ValidCardID(s string) bool {
	if len(s) != cardIDLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return true
}
