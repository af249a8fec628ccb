package security

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeCreds struct{ token string }

func (f *fakeCreds) Token(context.Context) (string, error) { return f.token, nil }

type fakeStatus bool

func (f fakeStatus) Online() bool { return bool(f) }

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func tokenFor(t *testing.T, sub, role string, ttl time.Duration) string {
	return makeToken(t, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"sid":  "session-1",
		"exp":  now.Add(ttl).Unix(),
	})
}

func newService(t *testing.T, creds CredentialProvider, opts Options) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if opts.Now == nil {
		opts.Now = func() time.Time { return now }
	}
	svc, err := NewService(st, creds, opts, nil)
	require.NoError(t, err)
	return svc, st
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	creds := &fakeCreds{token: tokenFor(t, "u1", "user", 2*time.Hour)}
	svc, st := newService(t, creds, Options{})
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, []byte(`{"bio":"x"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "bio")

	plain, err := svc.Decrypt(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, `{"bio":"x"}`, string(plain))

	salt, err := st.Metadata().Get(ctx, SaltKey)
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}

func TestDecrypt_TamperedAndTruncated(t *testing.T) {
	creds := &fakeCreds{token: tokenFor(t, "u1", "user", 2*time.Hour)}
	svc, _ := newService(t, creds, Options{})
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[13] ^= 0xFF
	_, err = svc.Decrypt(ctx, tampered)
	require.ErrorIs(t, err, ErrDecryptionFailure)

	_, err = svc.Decrypt(ctx, blob[:5])
	require.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestCredentialKey_RotationMakesOldBlobsUnreadable(t *testing.T) {
	creds := &fakeCreds{token: tokenFor(t, "u1", "user", 2*time.Hour)}
	svc, _ := newService(t, creds, Options{})
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)

	creds.token = tokenFor(t, "u1", "user", 3*time.Hour)
	_, err = svc.Decrypt(ctx, blob)
	require.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestDeviceKey_SurvivesRotation(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "device.key")
	creds := &fakeCreds{token: tokenFor(t, "u1", "user", 2*time.Hour)}
	svc, _ := newService(t, creds, Options{KeySource: KeySourceDevice, DeviceSecretFile: secretFile})
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)

	fi, err := os.Stat(secretFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	creds.token = tokenFor(t, "u1", "user", 3*time.Hour)
	plain, err := svc.Decrypt(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	creds.token = ""
	plain, err = svc.Decrypt(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))
}

func TestDeviceKey_Passphrase(t *testing.T) {
	svc, _ := newService(t, &fakeCreds{}, Options{KeySource: KeySourceDevice, DevicePassphrase: []byte("correct horse")})
	ctx := context.Background()

	k1, err := svc.DeriveKey(ctx)
	require.NoError(t, err)
	k2, err := svc.DeriveKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestEncrypt_NoCredential(t *testing.T) {
	svc, _ := newService(t, &fakeCreds{}, Options{})
	_, err := svc.Encrypt(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrEncryptionFailure)

	_, err = svc.Decrypt(context.Background(), []byte("whatever-blob-long-enough-to-matter"))
	require.ErrorIs(t, err, ErrEncryptionFailure)
}

func TestValidateOfflineAccess(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid for two hours", tokenFor(t, "u1", "user", 2*time.Hour), true},
		{"admin role", tokenFor(t, "u1", "admin", 2*time.Hour), true},
		{"expires in thirty minutes", tokenFor(t, "u1", "user", 30*time.Minute), false},
		{"expires in exactly one hour", tokenFor(t, "u1", "user", time.Hour), false},
		{"already expired", tokenFor(t, "u1", "user", -time.Hour), false},
		{"role not allowed", tokenFor(t, "u1", "guest", 2*time.Hour), false},
		{"no exp claim", makeToken(t, jwt.MapClaims{"sub": "u1", "role": "user"}), false},
		{"not a jwt", "garbage", false},
		{"no credential", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, &fakeCreds{token: tt.token}, Options{})
			assert.Equal(t, tt.want, svc.ValidateOfflineAccess(context.Background()))
		})
	}
}

func TestValidateOfflineAccess_CustomRoles(t *testing.T) {
	svc, _ := newService(t, &fakeCreds{token: tokenFor(t, "u1", "guest", 2*time.Hour)}, Options{AllowedRoles: []string{"guest"}})
	assert.True(t, svc.ValidateOfflineAccess(context.Background()))
}

func TestLogActivity(t *testing.T) {
	token := makeToken(t, jwt.MapClaims{"user_id": "u42", "sub": "ignored", "role": "user", "sid": "s-9", "exp": now.Add(2 * time.Hour).Unix()})
	svc, st := newService(t, &fakeCreds{token: token}, Options{
		ClientAgent:   "offlinekit/test",
		NetworkOrigin: "api.example.com",
		Status:        fakeStatus(true),
	})
	ctx := context.Background()

	svc.LogActivity(ctx, models.EventOfflineRead, map[string]string{"k": "v"})
	svc.LogUserActivity(ctx, "other", models.EventOperationDeadLetter, nil)

	logs, err := st.SecurityLogs().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	first := logs[0]
	assert.Equal(t, "u42", first.UserID)
	assert.Equal(t, models.EventOfflineRead, first.EventType)
	assert.Equal(t, models.SourceOnline, first.Source)
	assert.Equal(t, "s-9", first.SessionID)
	assert.Equal(t, "offlinekit/test", first.ClientAgent)
	assert.Equal(t, "api.example.com", first.NetworkOrigin)
	assert.JSONEq(t, `{"k":"v"}`, string(first.Details))
	assert.True(t, first.Timestamp.Equal(now))

	assert.Equal(t, "other", logs[1].UserID)
	assert.Empty(t, logs[1].Details)
}

func TestLogActivity_SwallowsStoreFailure(t *testing.T) {
	svc, st := newService(t, &fakeCreds{}, Options{})
	require.NoError(t, st.Close())

	assert.NotPanics(t, func() {
		svc.LogActivity(context.Background(), models.EventOfflineRead, nil)
	})
}

func TestPurgeLogsOlderThan(t *testing.T) {
	clock := now
	svc, st := newService(t, &fakeCreds{}, Options{Now: func() time.Time { return clock }})
	ctx := context.Background()

	clock = now.Add(-48 * time.Hour)
	svc.LogActivity(ctx, models.EventOfflineRead, nil)
	clock = now.Add(-time.Hour)
	svc.LogActivity(ctx, models.EventOfflineRead, nil)
	clock = now

	n, err := svc.PurgeLogsOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	logs, err := st.SecurityLogs().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.EventSecurityLogRetention, logs[1].EventType)
}

func TestVerifyIntegrity(t *testing.T) {
	svc, _ := newService(t, &fakeCreds{}, Options{})

	good := `{"user":{"id":"u1","name":"A"},"profile":{},"security_logs":[],"last_sync":"2026-05-01T12:00:00Z"}`
	require.NoError(t, svc.VerifyIntegrity([]byte(good)))

	bad := map[string]string{
		"not json":         `{"user":`,
		"user not object":  `{"user":"u1","profile":{},"security_logs":[],"last_sync":"2026-05-01T12:00:00Z"}`,
		"user without id":  `{"user":{},"profile":{},"security_logs":[],"last_sync":"2026-05-01T12:00:00Z"}`,
		"logs not array":   `{"user":{"id":"u1"},"profile":{},"security_logs":{},"last_sync":"2026-05-01T12:00:00Z"}`,
		"unparseable time": `{"user":{"id":"u1"},"profile":{},"security_logs":[],"last_sync":"yesterday"}`,
		"missing profile":  `{"user":{"id":"u1"},"security_logs":[],"last_sync":"2026-05-01T12:00:00Z"}`,
	}
	for name, blob := range bad {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, svc.VerifyIntegrity([]byte(blob)), ErrIntegrityCheckFailure)
		})
	}
}

func TestHash(t *testing.T) {
	svc, _ := newService(t, &fakeCreds{}, Options{})
	assert.Equal(t, svc.Hash([]byte("abc")), svc.Hash([]byte("abc")))
	assert.Len(t, svc.Hash([]byte("abc")), 64)
}
