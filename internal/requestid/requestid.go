// Package requestid derives the coordinator's stable short request
// identifier from a request's unique key, and normalizes URLs into unique
// keys when the caller doesn't supply one.
package requestid

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const derivedIDLength = 15

// Derive computes the coordinator's short, deterministic request-ID for a
// uniqueKey: SHA-256 over the UTF-8 bytes, standard base64, with '+', '/'
// and '=' stripped, truncated to 15 characters. Identical uniqueKey values
// always yield the identical ID, including across clients.
func Derive(uniqueKey string) string {
	sum := sha256.Sum256([]byte(uniqueKey))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	encoded = strings.NewReplacer("+", "", "/", "", "=", "").Replace(encoded)
	if len(encoded) > derivedIDLength {
		return encoded[:derivedIDLength]
	}
	return encoded
}
