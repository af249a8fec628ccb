package security

import "errors"

var (
	ErrEncryptionFailure     = errors.New("encryption failure")
	ErrDecryptionFailure     = errors.New("decryption failure")
	ErrIntegrityCheckFailure = errors.New("integrity check failure")
	ErrAccessDenied          = errors.New("offline access denied")
	ErrNoCredential          = errors.New("no session credential")
)
