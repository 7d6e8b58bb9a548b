package models

import "time"

// RememberToken is one durable remember-me credential. Series is the stable
// public identifier of the credential lineage; TokenHash is the bcrypt hash
// of the current rotating secret. EncryptedKey, when present, holds
// IV||ciphertext of the escrowed per-user key, encrypted under a key derived
// from the current raw token.
type RememberToken struct {
	ID           int64
	UserID       int64
	Series       string
	TokenHash    string
	EncryptedKey []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastUsedAt   *time.Time
	UserAgent    string
	IPAddress    string
}

// Expired reports whether the record is past its expiry at the given instant.
func (t *RememberToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
