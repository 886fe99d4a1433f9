package security

import (
	"crypto/subtle"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/scrypt"
)

const responseContext = "rkvm auth response v1|"

// ResponseSize is the length of a challenge response MAC.
const ResponseSize = 32

// DeriveKey stretches the shared password into a 32 byte key bound to the
// salt chosen by the server. An empty password is accepted; the server
// decides whether it matches.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	const (
		keyLength = 32
		n         = 1 << 15
		r         = 8
		p         = 1
	)
	key, err := scrypt.Key([]byte(password), salt, n, r, p, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Respond computes the MAC proving knowledge of password for the given
// challenge nonce and salt.
func Respond(password string, salt, nonce []byte) ([]byte, error) {
	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	hasher, err := blake3.NewKeyed(key)
	if err != nil {
		return nil, fmt.Errorf("keyed hash: %w", err)
	}
	hasher.WriteString(responseContext)
	hasher.Write(nonce)
	return hasher.Sum(nil)[:ResponseSize], nil
}

// Verify reports whether response matches the MAC expected for password.
// The comparison is constant time.
func Verify(password string, salt, nonce, response []byte) bool {
	expected, err := Respond(password, salt, nonce)
	if err != nil || len(response) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, response) == 1
}
