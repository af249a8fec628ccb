package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-t", "-i", "-r", "-k", "-p", "-l", "-merge"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     base URL of the remote REST API
//	-d string     path of the local database
//	-t string     path of the credential token file
//	-i int        online check interval (in seconds)
//	-r duration   background drain interval
//	-k string     key source: credential or device
//	-p string     reachability probe: http, grpc or none
//	-l string     log level
//	-merge string merge policy: shallow or deep
//
// os.Args is filtered through flagx.FilterArgs first so that the config file
// flag and REPL arguments do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the remote API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.TokenFile, "t", cfg.TokenFile, "credential token file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.DurationVar(&cfg.DrainInterval, "r", cfg.DrainInterval, "background drain interval")
	fs.StringVar(&cfg.KeySource, "k", cfg.KeySource, "key source (credential|device)")
	fs.StringVar(&cfg.Probe, "p", cfg.Probe, "reachability probe (http|grpc|none)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.MergePolicy, "merge", cfg.MergePolicy, "merge policy (shallow|deep)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.KeySource = strings.ToLower(cfg.KeySource)
}
