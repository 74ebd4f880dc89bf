package utils

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for reset tokens
	"encoding/hex"  // hex encoding and decoding functions
	"time"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = 10 * time.Minute

// ResetToken is a reset token pair.  Plain is mailed to the user and never
// stored; Hash is the SHA‑256 hex digest persisted on the user row.
type ResetToken struct {
	Plain   string
	Hash    string
	Expires time.Time
}

// NewResetToken returns a fresh reset token pair built from 32 bytes of
// cryptographically secure random data.
func NewResetToken() (ResetToken, error) {
	plain, err := randomHex(32)
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Plain:   plain,
		Hash:    HashResetToken(plain),
		Expires: time.Now().UTC().Add(ResetTokenTTL),
	}, nil
}

// HashResetToken returns the SHA‑256 hash of the plain token as a hex
// string.  Storing only the hash means a database leak does not expose
// usable reset links.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
