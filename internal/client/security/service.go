// Package security protects cached data at rest and keeps the audit trail.
//
// The Service derives an AES-256 key (from the live session credential or
// from a device-bound secret, see KeySource), seals and opens blobs with
// AES-GCM, gates offline access on the credential's claims, validates the
// shape of decrypted cache envelopes and appends SecurityLogEntry records.
package security

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
	"github.com/dmitrijs2005/offlinekit/internal/logging"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// KeySource selects what the encryption key is derived from.
type KeySource string

const (
	// KeySourceCredential derives the key from the live access token. Records
	// sealed under one token cannot be opened after the token rotates.
	KeySourceCredential KeySource = "credential"
	// KeySourceDevice derives the key from a stable per-device secret and
	// survives credential rotation.
	KeySourceDevice KeySource = "device"
)

// SaltKey is the metadata key holding the persisted KDF salt.
const SaltKey = "kdf_salt"

// DefaultAllowedRoles are the roles permitted to work offline.
var DefaultAllowedRoles = []string{"user", "admin", "moderator"}

// CredentialProvider hands out the current session access token. An empty
// token with a nil error means no one is signed in.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StatusSource reports reachability; it decides the source of audit entries.
type StatusSource interface {
	Online() bool
}

// Store is the slice of the local store the security layer needs.
type Store interface {
	Metadata() metadata.Repository
	SecurityLogs() securitylogs.Repository
	PurgeOlderThan(ctx context.Context, collection, index string, cutoff time.Time) (int, error)
}

// Options configures a Service. KeySource defaults to KeySourceCredential
// and AllowedRoles to DefaultAllowedRoles.
type Options struct {
	KeySource     KeySource
	KDFIterations int
	// DeviceSecretFile holds the random device secret; created (0600) on
	// first use. Ignored when DevicePassphrase is set.
	DeviceSecretFile string
	DevicePassphrase []byte
	AllowedRoles     []string
	// MinValidity is how long the credential must still be valid for offline
	// access to be granted. Defaults to one hour.
	MinValidity   time.Duration
	ClientAgent   string
	NetworkOrigin string
	Status        StatusSource
	Now           func() time.Time
}

// Service is the security layer: key derivation and record encryption, the
// offline access gate, the security audit log and structural integrity
// checks. The derived key is cached for as long as its input is unchanged.
type Service struct {
	store Store
	creds CredentialProvider
	log   logging.Logger
	opts  Options

	mu     sync.Mutex
	key    []byte
	keyFor string

	schema *jsonschema.Schema
}

// NewService compiles the integrity schema and applies option defaults. It
// does not derive a key; that happens on first Encrypt or Decrypt.
func NewService(store Store, creds CredentialProvider, opts Options, log logging.Logger) (*Service, error) {
	if opts.KeySource == "" {
		opts.KeySource = KeySourceCredential
	}
	if len(opts.AllowedRoles) == 0 {
		opts.AllowedRoles = DefaultAllowedRoles
	}
	if opts.MinValidity <= 0 {
		opts.MinValidity = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:  store,
		creds:  creds,
		log:    logging.OrNop(log).With("component", "security"),
		opts:   opts,
		schema: schema,
	}, nil
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}
