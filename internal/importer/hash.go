package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeLineEndings converts CRLF and lone CR line endings to LF.
func NormalizeLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Fingerprint returns the lowercase hex SHA-256 digest of content.
// Callers normalize line endings first.
func Fingerprint(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
