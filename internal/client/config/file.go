package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/flagx"
	"github.com/dmitrijs2005/offlinekit/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for decoding config files. Intervals
// use timex.Duration so they can be written as "5m" or as nanoseconds.
// Unset fields leave the current value alone.
type FileConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
	TokenFile    string `json:"token_file" yaml:"token_file"`
	FlagsFile    string `json:"flags_file" yaml:"flags_file"`
	LogLevel     string `json:"log_level" yaml:"log_level"`

	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	Probe               string         `json:"probe" yaml:"probe"`
	ProbeTarget         string         `json:"probe_target" yaml:"probe_target"`

	DrainInterval     timex.Duration `json:"drain_interval" yaml:"drain_interval"`
	DefaultMaxRetries *int           `json:"default_max_retries" yaml:"default_max_retries"`
	DefaultRetryDelay timex.Duration `json:"default_retry_delay" yaml:"default_retry_delay"`
	ReplayTimeout     timex.Duration `json:"replay_timeout" yaml:"replay_timeout"`
	HistorySize       int            `json:"history_size" yaml:"history_size"`

	KeySource        string   `json:"key_source" yaml:"key_source"`
	DeviceSecretFile string   `json:"device_secret_file" yaml:"device_secret_file"`
	PromptPassphrase bool     `json:"prompt_passphrase" yaml:"prompt_passphrase"`
	KDFIterations    int      `json:"kdf_iterations" yaml:"kdf_iterations"`
	AllowedRoles     []string `json:"allowed_roles" yaml:"allowed_roles"`

	StaleAfter   timex.Duration `json:"stale_after" yaml:"stale_after"`
	LogRetention timex.Duration `json:"log_retention" yaml:"log_retention"`
	MergePolicy  string         `json:"merge_policy" yaml:"merge_policy"`
	ClientAgent  string         `json:"client_agent" yaml:"client_agent"`

	ExportDir   string `json:"export_dir" yaml:"export_dir"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket    string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix    string `json:"s3_prefix" yaml:"s3_prefix"`
}

// parseFile overlays Config with values loaded from the file named by -c or
// -config. Files ending in .yaml or .yml are decoded as YAML, anything else
// as JSON. Panics on read or decode errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.BaseURL, fc.BaseURL)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.TokenFile, fc.TokenFile)
	setString(&cfg.FlagsFile, fc.FlagsFile)
	setString(&cfg.LogLevel, fc.LogLevel)

	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setString(&cfg.Probe, fc.Probe)
	setString(&cfg.ProbeTarget, fc.ProbeTarget)

	setDuration(&cfg.DrainInterval, fc.DrainInterval)
	if fc.DefaultMaxRetries != nil {
		cfg.DefaultMaxRetries = *fc.DefaultMaxRetries
	}
	setDuration(&cfg.DefaultRetryDelay, fc.DefaultRetryDelay)
	setDuration(&cfg.ReplayTimeout, fc.ReplayTimeout)
	if fc.HistorySize > 0 {
		cfg.HistorySize = fc.HistorySize
	}

	setString(&cfg.KeySource, fc.KeySource)
	setString(&cfg.DeviceSecretFile, fc.DeviceSecretFile)
	if fc.PromptPassphrase {
		cfg.PromptPassphrase = true
	}
	if fc.KDFIterations > 0 {
		cfg.KDFIterations = fc.KDFIterations
	}
	if len(fc.AllowedRoles) > 0 {
		cfg.AllowedRoles = fc.AllowedRoles
	}

	setDuration(&cfg.StaleAfter, fc.StaleAfter)
	setDuration(&cfg.LogRetention, fc.LogRetention)
	setString(&cfg.MergePolicy, fc.MergePolicy)
	setString(&cfg.ClientAgent, fc.ClientAgent)

	setString(&cfg.ExportDir, fc.ExportDir)
	setString(&cfg.S3.Region, fc.S3Region)
	setString(&cfg.S3.Endpoint, fc.S3Endpoint)
	setString(&cfg.S3.AccessKey, fc.S3AccessKey)
	setString(&cfg.S3.SecretKey, fc.S3SecretKey)
	setString(&cfg.S3.Bucket, fc.S3Bucket)
	setString(&cfg.S3.Prefix, fc.S3Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
