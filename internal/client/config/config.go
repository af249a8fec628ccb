package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/buildinfo"
	"github.com/dmitrijs2005/offlinekit/internal/client/merge"
)

const (
	KeySourceCredential = "credential"
	KeySourceDevice     = "device"

	ProbeHTTP = "http"
	ProbeGRPC = "grpc"
	ProbeNone = "none"
)

// S3 configures the optional S3-compatible export sink. Bucket empty means
// exports go to ExportDir only.
type S3 struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// Config holds runtime settings for the offlinekit CLI.
//
// Durations are time.Duration values. Paths default to files below the
// user's data directory (see DataDir).
type Config struct {
	BaseURL      string
	DatabasePath string
	TokenFile    string
	FlagsFile    string
	LogLevel     string

	OnlineCheckInterval time.Duration
	Probe               string
	ProbeTarget         string

	DrainInterval     time.Duration
	DefaultMaxRetries int
	DefaultRetryDelay time.Duration
	ReplayTimeout     time.Duration
	HistorySize       int

	KeySource        string
	DeviceSecretFile string
	// PromptPassphrase asks for a device passphrase at start instead of
	// reading DeviceSecretFile. Only meaningful with the device key source.
	PromptPassphrase bool
	KDFIterations    int
	AllowedRoles     []string

	StaleAfter   time.Duration
	LogRetention time.Duration
	MergePolicy  string
	ClientAgent  string

	ExportDir string
	S3        S3
}

// DataDir is where local files live unless configured otherwise.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".offlinekit"
	}
	return filepath.Join(home, ".offlinekit")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	dir := DataDir()

	c.BaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = filepath.Join(dir, "offline.db")
	c.TokenFile = filepath.Join(dir, "token")
	c.FlagsFile = filepath.Join(dir, "flags.json")
	c.LogLevel = "info"

	c.OnlineCheckInterval = 3 * time.Second
	c.Probe = ProbeHTTP
	c.ProbeTarget = ""

	c.DrainInterval = 5 * time.Minute
	c.DefaultMaxRetries = 3
	c.DefaultRetryDelay = time.Second
	c.ReplayTimeout = 30 * time.Second
	c.HistorySize = 100

	c.KeySource = KeySourceCredential
	c.DeviceSecretFile = filepath.Join(dir, "device.key")
	c.KDFIterations = 100000
	c.AllowedRoles = []string{"user", "admin", "moderator"}

	c.StaleAfter = 24 * time.Hour
	c.LogRetention = 90 * 24 * time.Hour
	c.MergePolicy = merge.NameShallow
	c.ClientAgent = "offlinekit/" + buildinfo.Version

	c.ExportDir = filepath.Join(dir, "exports")
	c.S3 = S3{Region: "us-east-1", Prefix: "exports"}
}

// Validate checks enumerations and ranges that a bad file or flag could
// break.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	switch c.KeySource {
	case KeySourceCredential, KeySourceDevice:
	default:
		errs = append(errs, fmt.Errorf("key_source: unknown value %q", c.KeySource))
	}
	switch c.Probe {
	case ProbeHTTP, ProbeGRPC, ProbeNone:
	default:
		errs = append(errs, fmt.Errorf("probe: unknown value %q", c.Probe))
	}
	if c.Probe == ProbeGRPC && c.ProbeTarget == "" {
		errs = append(errs, errors.New("probe_target is required for the grpc probe"))
	}
	if _, err := merge.ByName(c.MergePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.OnlineCheckInterval <= 0 || c.DrainInterval <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if c.DefaultMaxRetries < 0 {
		errs = append(errs, errors.New("default_max_retries must not be negative"))
	}
	if len(c.AllowedRoles) == 0 {
		errs = append(errs, errors.New("allowed_roles must not be empty"))
	}
	return errors.Join(errs...)
}

// ProbeURL is the address the reachability probe hits.
func (c *Config) ProbeURL() string {
	if c.ProbeTarget != "" {
		return c.ProbeTarget
	}
	return c.BaseURL
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
