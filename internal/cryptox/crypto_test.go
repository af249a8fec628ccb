package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func TestDeriveDeviceKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveDeviceKey(password, salt)
	key2 := DeriveDeviceKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	// Argon2id with one pass, 64 MiB and four lanes.
	assert.Equal(t, argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize), key1)
	assert.Len(t, key1, KeySize)
}

func TestDeriveDeviceKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveDeviceKey(password, []byte("salt-1"))
	key2 := DeriveDeviceKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestDerivePasswordKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1 := DerivePasswordKey([]byte("token-a"), salt, MinPBKDF2Iterations)
	k2 := DerivePasswordKey([]byte("token-a"), salt, 10)
	k3 := DerivePasswordKey([]byte("token-b"), salt, MinPBKDF2Iterations)

	require.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2, "iteration counts below the floor are raised")
	assert.NotEqual(t, k1, k3)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	plain := []byte(`{"bio":"x"}`)

	blob, err := Seal(key, plain)
	require.NoError(t, err)
	require.Len(t, blob, NonceSize+len(plain)+16)

	again, err := Seal(key, plain)
	require.NoError(t, err)
	assert.NotEqual(t, blob[:NonceSize], again[:NonceSize], "nonce must be fresh per call")

	got, err := Open(key, blob)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestOpen_Failures(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	blob, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = Open(key, tampered)
	require.Error(t, err)

	_, err = Open(key, blob[:NonceSize+3])
	require.ErrorIs(t, err, ErrShortCiphertext)

	_, err = Open(bytes.Repeat([]byte{8}, KeySize), blob)
	require.Error(t, err)

	_, err = Open([]byte("short"), blob)
	require.ErrorIs(t, err, ErrKeySize)
}

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))
	assert.Equal(t, Hash([]byte("a")), Hash([]byte("a")))
	assert.NotEqual(t, Hash([]byte("a")), Hash([]byte("b")))
}
