package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"
)

const (
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	saltLength   = 10
)

// FileHasher generates upload identifiers from the upload time, a random
// alphanumeric salt and the original filename.
type FileHasher struct {
	now    func() time.Time
	random io.Reader
}

// NewFileHasher returns a FileHasher backed by the wall clock and crypto/rand.
func NewFileHasher() *FileHasher {
	return &FileHasher{now: time.Now, random: rand.Reader}
}

// NewFileHasherWithSource is used by tests to make hashes deterministic.
func NewFileHasherWithSource(now func() time.Time, random io.Reader) *FileHasher {
	return &FileHasher{now: now, random: random}
}

// Hash returns sha256(<unix seconds with fraction><salt><filename>) as hex.
// Two uploads of identical content get different hashes.
func (h *FileHasher) Hash(filename string) (string, error) {
	salt, err := h.salt()
	if err != nil {
		return "", fmt.Errorf("failed to generate file hash salt: %w", err)
	}

	ts := strconv.FormatFloat(float64(h.now().UnixNano())/1e9, 'f', -1, 64)
	sum := sha256.Sum256([]byte(ts + salt + filename))
	return hex.EncodeToString(sum[:]), nil
}

func (h *FileHasher) salt() (string, error) {
	out := make([]byte, saltLength)
	max := big.NewInt(int64(len(saltAlphabet)))
	for i := range out {
		n, err := rand.Int(h.random, max)
		if err != nil {
			return "", err
		}
		out[i] = saltAlphabet[n.Int64()]
	}
	return string(out), nil
}

// IsValidFileHash reports whether s looks like a hash produced by FileHasher.
func IsValidFileHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
