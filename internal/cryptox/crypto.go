// Package cryptox holds the symmetric primitives behind the security layer:
// key derivation (PBKDF2 for credential-bound keys, Argon2id for device-bound
// keys) and AES-256-GCM sealing with the nonce prepended to the ciphertext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/offlinekit/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// SaltSize is the length of a freshly generated KDF salt.
	SaltSize = 16
	// MinPBKDF2Iterations is the floor applied to configured iteration counts.
	MinPBKDF2Iterations = 100000
)

var (
	ErrShortCiphertext = errors.New("ciphertext too short")
	ErrKeySize         = errors.New("key must be 32 bytes")
)

// DerivePasswordKey stretches password with PBKDF2-HMAC-SHA256. Iteration
// counts below MinPBKDF2Iterations are raised to it.
func DerivePasswordKey(password, salt []byte, iterations int) []byte {
	if iterations < MinPBKDF2Iterations {
		iterations = MinPBKDF2Iterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// DeriveDeviceKey stretches a device secret or passphrase with Argon2id.
func DeriveDeviceKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Seal encrypts plaintext with AES-GCM under key and returns nonce||ciphertext.
// A new random nonce is drawn for every call.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(NonceSize)
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. Truncated input, a flipped bit or the wrong key all
// fail authentication.
func Open(key, blob []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < NonceSize+aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	return aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
