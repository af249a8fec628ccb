package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "http://api:9090", "-i", "10"}, expectPanic: false,
			expected: &Config{BaseURL: "http://api:9090", OnlineCheckInterval: 10 * time.Second}},
		{name: "Test2 all flags", args: []string{"cmd", "-a", "http://api", "-d", "/tmp/x.db", "-t", "/tmp/tok", "-i", "1",
			"-r", "30s", "-k", "DEVICE", "-p", "none", "-l", "debug", "-merge", "deep", "-c", "ignored.json"},
			expected: &Config{
				BaseURL: "http://api", DatabasePath: "/tmp/x.db", TokenFile: "/tmp/tok", OnlineCheckInterval: time.Second,
				DrainInterval: 30 * time.Second, KeySource: "device", Probe: "none", LogLevel: "debug", MergePolicy: "deep",
			}},
		{name: "Test3 incorrect check interval", args: []string{"cmd", "-a", "http://api", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
