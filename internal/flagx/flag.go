// Package flagx lets several packages parse their own subsets of os.Args
// without tripping over each other's flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// ConfigFlags are the names accepted for the config file path.
var ConfigFlags = []string{"-c", "-config", "--config"}

// splitFlag breaks "-name=value" into its parts. inline is false when arg
// carries no '='.
func splitFlag(arg string) (name, value string, inline bool) {
	name, value, inline = strings.Cut(arg, "=")
	return name, value, inline
}

// FilterArgs keeps only the flags named in allowed, together with their
// values. Both "-f value" and "-f=value" are understood. A token starting
// with '-' is never taken as the value of the flag before it.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, _, inline := splitFlag(arg)
		if !keep[name] {
			continue
		}
		out = append(out, arg)
		if inline {
			continue
		}
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			out = append(out, args[next])
			i = next
		}
	}
	return out
}

// ConfigPath returns the config file named in args by any of ConfigFlags,
// or "" when none is given. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "config file (JSON or YAML)")
	fs.StringVar(&path, "c", "", "config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFlags))

	return path
}

// ConfigFileFlag is ConfigPath over os.Args.
func ConfigFileFlag() string {
	return ConfigPath(os.Args[1:])
}
