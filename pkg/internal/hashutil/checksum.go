// Package hashutil computes payload digests.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// FileSHA256 returns the lower-case hex SHA256 of the file at path.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Normalize trims an expected digest and drops an optional "sha256:"
// prefix so it compares with FileSHA256 output.
func Normalize(digest string) string {
	digest = strings.ToLower(strings.TrimSpace(digest))
	return strings.TrimPrefix(digest, "sha256:")
}
