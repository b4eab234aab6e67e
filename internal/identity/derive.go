package identity

import (
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// fingerprintSalt is fixed: the secret input is already random per device,
// the KDF just makes the fingerprint non-invertible.
var fingerprintSalt = []byte("nocturne/guest-fingerprint/v1")

// Fingerprint derives the stable guest fingerprint from the persisted
// device secret.
func Fingerprint(secret []byte) string {
	sum := argon2.IDKey(secret, fingerprintSalt, 1, 64*1024, 4, 16)
	return hex.EncodeToString(sum)
}

// DeriveVerifier derives the login verifier from a password and the
// server-issued salt. The password itself never leaves the device.
func DeriveVerifier(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}
