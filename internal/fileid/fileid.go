// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Prefix starts every document ID.
const Prefix = "doc:"

// DocumentID returns a stable ID for the file at path. Relative paths are made
// absolute first, so the same file yields the same ID from any working directory.
func DocumentID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return Prefix + hex.EncodeToString(hash[:])
}
