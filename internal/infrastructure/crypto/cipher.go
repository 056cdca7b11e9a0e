package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/blingsync/backend/internal/domain/credential"
)

var (
	// ErrInvalidCiphertext indicates the ciphertext is malformed or was
	// encrypted under a different key
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
	// ErrEmptyKey indicates the cipher was constructed without a passphrase
	ErrEmptyKey = errors.New("crypto: encryption key must not be empty")
)

const (
	keyIterations = 100_000
	keyLength     = 32
)

// salt is fixed: the derived key must be stable across restarts so stored
// ciphertext remains readable. Key rotation means re-encrypting rows.
var salt = []byte("blingsync.credential.v1")

// AESCipher encrypts credential material with AES-256-GCM. The key is derived
// from the configured passphrase via PBKDF2; ciphertext is nonce||sealed,
// base64-encoded.
type AESCipher struct {
	aead cipher.AEAD
}

// NewAESCipher derives the encryption key from the passphrase and builds the
// AEAD primitive once.
func NewAESCipher(passphrase string) (*AESCipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	key := pbkdf2.Key([]byte(passphrase), salt, keyIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESCipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce.
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// Ensure AESCipher implements credential.Cipher
var _ credential.Cipher = (*AESCipher)(nil)
