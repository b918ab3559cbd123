package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashText returns the hex sha256 of a string, used as a cache key.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChecksumFile computes the sha256 checksum of a file on disk.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
