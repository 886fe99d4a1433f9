package protocol

import (
	"crypto/rand"
	"fmt"

	"github.com/example/rkvm-client/internal/security"
)

// AuthChallenge is sent by the server after version negotiation.
type AuthChallenge struct {
	Nonce [32]byte `cbor:"nonce"`
	Salt  [16]byte `cbor:"salt"`
}

// NewAuthChallenge returns a challenge with fresh random material.
func NewAuthChallenge() (AuthChallenge, error) {
	var c AuthChallenge
	if _, err := rand.Read(c.Nonce[:]); err != nil {
		return AuthChallenge{}, fmt.Errorf("generate nonce: %w", err)
	}
	if _, err := rand.Read(c.Salt[:]); err != nil {
		return AuthChallenge{}, fmt.Errorf("generate salt: %w", err)
	}
	return c, nil
}

// Respond computes the response proving knowledge of password.
func (c AuthChallenge) Respond(password string) (AuthResponse, error) {
	mac, err := security.Respond(password, c.Salt[:], c.Nonce[:])
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{MAC: mac}, nil
}

// Verify reports whether r answers c for password.
func (c AuthChallenge) Verify(password string, r AuthResponse) bool {
	return security.Verify(password, c.Salt[:], c.Nonce[:], r.MAC)
}

// AuthResponse is the client's answer to an AuthChallenge.
type AuthResponse struct {
	MAC []byte `cbor:"mac"`
}

// AuthStatus is the server's verdict on an AuthResponse.
type AuthStatus uint8

const (
	AuthPassed AuthStatus = iota
	AuthFailed
)

func (s AuthStatus) String() string {
	switch s {
	case AuthPassed:
		return "passed"
	case AuthFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}
