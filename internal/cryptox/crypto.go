// Package cryptox implements the cryptographic envelope used to escrow a
// per-user secret inside a remember-me token record.
//
// The escrow key is encrypted under a key derived from the current raw token
// value, so it can only be recovered by whoever presents that token. On every
// rotation the payload is re-encrypted under the new raw token.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/chrishksang/sessionkeeper/internal/common"
)

// ErrMalformedCiphertext is returned when an escrow blob is too short or not
// block-aligned. Callers treat it as "no escrow key recoverable".
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

const (
	ivSize  = aes.BlockSize // 16
	keySize = 32            // AES-256

	// PBKDF2 parameters for the password-derived escrow key.
	pbkdf2Iterations = 100_000
)

// DeriveTokenKey derives the symmetric key protecting an escrow blob from the
// raw token value. The raw token is the hex string handed to the client; the
// hash is over its ASCII bytes.
func DeriveTokenKey(rawToken string) []byte {
	k := sha256.Sum256([]byte(rawToken))
	return k[:]
}

// DerivePasswordKey derives a per-user encryption key from a password using
// PBKDF2-HMAC-SHA256. The salt binds the key to the user so identical
// passwords produce distinct keys.
func DerivePasswordKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
}

// EncryptEscrow encrypts the escrow payload under a key derived from rawToken
// using AES-256-CBC with a fresh random IV. The result is IV || ciphertext,
// suitable for storing in the token record as a single opaque blob.
func EncryptEscrow(escrowKey []byte, rawToken string) ([]byte, error) {
	block, err := aes.NewCipher(DeriveTokenKey(rawToken))
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(ivSize)
	plaintext := pad(escrowKey, aes.BlockSize)

	out := make([]byte, ivSize+len(plaintext))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivSize:], plaintext)

	return out, nil
}

// DecryptEscrow recovers the escrow payload from an IV||ciphertext blob using
// the key derived from rawToken. Malformed input (too short, not
// block-aligned, bad padding) yields ErrMalformedCiphertext.
func DecryptEscrow(blob []byte, rawToken string) ([]byte, error) {
	if len(blob) < ivSize+1 {
		return nil, ErrMalformedCiphertext
	}
	iv, ciphertext := blob[:ivSize], blob[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(DeriveTokenKey(rawToken))
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext, aes.BlockSize)
}

// pad applies PKCS#7 padding.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding, rejecting inconsistent pad bytes.
func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrMalformedCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
