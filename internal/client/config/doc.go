// Package config loads runtime configuration for the offlinekit CLI.
//
// # Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml/.yml are read as YAML, everything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
// Intervals use timex.Duration, so they can be strings like "5m" or integer
// nanoseconds:
//
//	{
//	  "base_url": "https://api.example.com",
//	  "database_path": "/var/lib/offlinekit/offline.db",
//	  "drain_interval": "5m",
//	  "online_check_interval": "3s",
//	  "probe": "http",
//	  "key_source": "device",
//	  "allowed_roles": ["user", "admin"],
//	  "stale_after": "24h",
//	  "s3_bucket": "exports"
//	}
//
// Environment variables are not read; use the file or flags.
package config
