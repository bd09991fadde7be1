// Package auth implements the optional password protection of the control
// API: a PBKDF2-stretched key, an HMAC challenge on connect and a
// chacha20poly1305 framed connection afterwards.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	AutoGenKeyLength = 20
	Base62Chars      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	PBKDF2Iterations = 100000
	PBKDF2Salt       = "ghostkey-Key-v1"
	sessionContext   = "ghostkey-Session-v1"
)

// ErrEmptyPassword is returned by DeriveKey for an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// GenerateKey creates a random base62 key of AutoGenKeyLength characters.
// Bytes that would bias the alphabet are rejected.
func GenerateKey() (string, error) {
	const limit = 256 - 256%len(Base62Chars)
	key := make([]byte, 0, AutoGenKeyLength)
	buf := make([]byte, AutoGenKeyLength)
	for len(key) < AutoGenKeyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			key = append(key, Base62Chars[int(b)%len(Base62Chars)])
			if len(key) == AutoGenKeyLength {
				break
			}
		}
	}
	return string(key), nil
}

// DeriveKey uses PBKDF2 to stretch any password to 32 bytes
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return pbkdf2.Key(sha256.New, password, []byte(PBKDF2Salt), PBKDF2Iterations, 32)
}

// DeriveSessionKey mixes the long-term key with both nonces.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}
