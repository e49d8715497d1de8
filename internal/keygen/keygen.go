// Package keygen produces opaque API key tokens.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix identifies keymint-issued tokens in logs and dumps without
	// revealing anything about the random part.
	Prefix = "ak_"

	// entropyBytes is the random payload size. 32 bytes keeps collisions
	// out of reach without retry logic at the insert site.
	entropyBytes = 32

	// Len is the total length of a generated token: prefix plus hex
	// encoding of the random payload.
	Len = len(Prefix) + entropyBytes*2
)

// New returns a fresh token of the form "ak_" followed by 64 hex characters.
// Tokens carry 256 bits of entropy from crypto/rand and have no sequential or
// time-derived component.
func New() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return Prefix + hex.EncodeToString(buf), nil
}

// WellFormed reports whether s has the shape of a generated token. It says
// nothing about whether the token exists.
func WellFormed(s string) bool {
	if len(s) != Len || !strings.HasPrefix(s, Prefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(Prefix):])
	return err == nil
}
