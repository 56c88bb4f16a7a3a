package jwt

import (
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used to sign or verify tokens.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

func (m SigningMethod) jwtMethod() (jwt.SigningMethod, error) {
	switch m {
	case MethodHS256:
		return jwt.SigningMethodHS256, nil
	case MethodEd25519:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("unsupported signing method %q", string(m))
	}
}

func signKey(m SigningMethod, key []byte) (interface{}, error) {
	switch m {
	case MethodHS256:
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: hs256 requires a secret", ErrInvalidKey)
		}
		return key, nil
	case MethodEd25519:
		return parseEdPrivateKey(key)
	default:
		return nil, fmt.Errorf("unsupported signing method %q", string(m))
	}
}

func verifyKey(m SigningMethod, key []byte) (interface{}, error) {
	switch m {
	case MethodHS256:
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: hs256 requires a secret", ErrInvalidKey)
		}
		return key, nil
	case MethodEd25519:
		return parseEdPublicKey(key)
	default:
		return nil, fmt.Errorf("unsupported signing method %q", string(m))
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 private key", ErrInvalidKey)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 private key type", ErrInvalidKey)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key", ErrInvalidKey)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 public key type", ErrInvalidKey)
	}
	return edKey, nil
}
