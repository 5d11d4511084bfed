// Package vault encrypts secrets at rest with AES-256-GCM.
//
// Ciphertexts have the form "<nonce>:<tag>:<payload>", each part lower-case
// hex, so any process holding the same secret can decrypt them.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

var (
	// ErrNoSecret is returned by New when no secret is configured.
	ErrNoSecret = errors.New("vault: encryption secret is not configured")
	// ErrInvalidCiphertextFormat means the ciphertext is not three non-empty delimited parts.
	ErrInvalidCiphertextFormat = errors.New("vault: invalid ciphertext format")
	// ErrAuthenticationFailed means the data was tampered with or sealed under another key.
	ErrAuthenticationFailed = errors.New("vault: authentication failed")
)

const (
	delimiter = ":"
	keyLength = 32
	nonceSize = 16
	tagSize   = 16

	// scrypt cost parameters; must not change once data has been sealed.
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

var salt = []byte("salt")

// Vault seals and opens secrets with a key derived once from a configured secret.
type Vault struct {
	aead cipher.AEAD
}

// New derives the key from secret and returns a ready Vault.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("vault: deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: creating gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: reading nonce: %w", err)
	}
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	payload, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(payload),
	}, delimiter), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It never returns partial
// plaintext: any structural problem yields ErrInvalidCiphertextFormat and any
// integrity problem yields ErrAuthenticationFailed.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, delimiter)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", ErrInvalidCiphertextFormat
	}

	nonce, err := decodeHex(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrAuthenticationFailed
	}
	tag, err := decodeHex(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrAuthenticationFailed
	}
	payload, err := decodeHex(parts[2])
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	plaintext, err := v.aead.Open(nil, nonce, append(payload, tag...), nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plaintext), nil
}

// decodeHex accepts lower-case hex only so that every altered character
// changes the decoded bytes.
func decodeHex(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return nil, fmt.Errorf("invalid hex character %q", c)
		}
	}
	return hex.DecodeString(s)
}
