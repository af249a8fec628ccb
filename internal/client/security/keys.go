package security

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/offlinekit/internal/common"
	"github.com/dmitrijs2005/offlinekit/internal/cryptox"
	"github.com/dmitrijs2005/offlinekit/internal/filex"
)

const deviceSecretSize = 32

// DeriveKey returns a copy of the current AES-256 key. The key is cached and
// derived again only when the credential it was derived from changes.
func (s *Service) DeriveKey(ctx context.Context) ([]byte, error) {
	var (
		secret []byte
		tag    string
		err    error
	)
	switch s.opts.KeySource {
	case KeySourceCredential:
		token, err := s.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read credential: %w", err)
		}
		if token == "" {
			return nil, ErrNoCredential
		}
		secret = []byte(token)
		tag = "credential:" + cryptox.Hash(secret)
	case KeySourceDevice:
		secret, err = s.deviceSecret()
		if err != nil {
			return nil, err
		}
		tag = "device:" + cryptox.Hash(secret)
	default:
		return nil, fmt.Errorf("unknown key source %q", s.opts.KeySource)
	}
	defer common.WipeByteArray(secret)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil && s.keyFor == tag {
		return append([]byte(nil), s.key...), nil
	}

	salt, err := s.store.Metadata().SetIfAbsent(ctx, SaltKey, cryptox.NewSalt())
	if err != nil {
		return nil, fmt.Errorf("load kdf salt: %w", err)
	}

	var key []byte
	if s.opts.KeySource == KeySourceDevice {
		key = cryptox.DeriveDeviceKey(secret, salt)
	} else {
		key = cryptox.DerivePasswordKey(secret, salt, s.opts.KDFIterations)
	}

	if s.key != nil {
		s.log.Info(ctx, "encryption key rotated", "key_source", string(s.opts.KeySource))
		common.WipeByteArray(s.key)
	}
	s.key = key
	s.keyFor = tag
	return append([]byte(nil), key...), nil
}

// deviceSecret returns the passphrase if one is configured, otherwise the
// contents of the device secret file, creating it on first use.
func (s *Service) deviceSecret() ([]byte, error) {
	if len(s.opts.DevicePassphrase) > 0 {
		return append([]byte(nil), s.opts.DevicePassphrase...), nil
	}
	if s.opts.DeviceSecretFile == "" {
		return nil, errors.New("device key source needs a secret file or passphrase")
	}

	b, err := os.ReadFile(s.opts.DeviceSecretFile)
	if err == nil {
		if len(b) == 0 {
			return nil, fmt.Errorf("device secret %s is empty", s.opts.DeviceSecretFile)
		}
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	secret := common.GenerateRandByteArray(deviceSecretSize)
	if err := filex.WriteFileAtomic(s.opts.DeviceSecretFile, secret, 0o600); err != nil {
		return nil, fmt.Errorf("write device secret: %w", err)
	}
	return secret, nil
}

// Encrypt seals plaintext under the current key as nonce||ciphertext.
func (s *Service) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	key, err := s.DeriveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	blob, err := cryptox.Seal(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt. Malformed or tampered input and
// blobs sealed under another key yield ErrDecryptionFailure; a key that
// cannot be derived at all yields ErrEncryptionFailure.
func (s *Service) Decrypt(ctx context.Context, blob []byte) ([]byte, error) {
	key, err := s.DeriveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	plain, err := cryptox.Open(key, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}
	return plain, nil
}

// Hash is the hex SHA-256 of data, used for change detection.
func (s *Service) Hash(data []byte) string {
	return cryptox.Hash(data)
}
