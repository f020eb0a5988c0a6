package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const saltBytes = 16

// MakeSalt returns a fresh random salt, hex encoded. The salt is
// stored per account and keys the password digest, so it must never
// be reused across accounts.
func MakeSalt() string {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; an empty
		// salt yields the empty-digest sentinel downstream.
		return ""
	}
	return hex.EncodeToString(buf)
}

// DeriveDigest computes the salted password digest:
// hex(HMAC-SHA256(key=salt, msg=password)). It is deterministic so
// signin can re-derive and compare against the stored value. An empty
// password or salt yields the empty sentinel, which can never verify.
func DeriveDigest(password, salt string) string {
	if password == "" || salt == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPassword reports whether the candidate password reproduces
// the expected digest under the given salt.
func VerifyPassword(password, salt, expectedDigest string) bool {
	if expectedDigest == "" {
		return false
	}
	derived := DeriveDigest(password, salt)
	if derived == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(expectedDigest)) == 1
}
