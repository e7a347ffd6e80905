package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// NewRequestID returns an id for the X-Request-Id header of backend calls.
func NewRequestID() string {
	code, err := GenerateCode(8)
	if err != nil {
		return "req_unknown"
	}
	return "req_" + strings.ToLower(code)
}
