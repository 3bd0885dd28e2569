package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// SecureToken returns a URL-safe random token of length random bytes.
// Used for CSRF tokens; not for anything stored long-term.
func SecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
