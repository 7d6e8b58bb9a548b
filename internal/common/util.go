package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString returns size random bytes from the system CSPRNG,
// hex-encoded (so the resulting string is 2*size characters long).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size cryptographically random bytes.
// It panics if the system CSPRNG fails, which is unrecoverable anyway.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes the buffer in place. Safe to call with nil.
func WipeByteArray(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
