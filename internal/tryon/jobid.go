// Package tryon runs the virtual try-on job lifecycle: submission, background
// compositing and status queries.
package tryon

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// JobID builds the deterministic try-on id {envTag}-{contentHash}-{productId}.
func JobID(envTag, contentHash string, productID int) string {
	return fmt.Sprintf("%s-%s-%d", envTag, contentHash, productID)
}

// ContentHash returns the MD5 hex digest of data.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// resolveContentHash prefers the client-supplied digest and falls back to
// hashing the payload.
func resolveContentHash(supplied string, data []byte) string {
	if s := strings.ToLower(strings.TrimSpace(supplied)); s != "" {
		return s
	}
	return ContentHash(data)
}
