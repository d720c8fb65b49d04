package config

import (
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X ...config.version=...".
var version = "dev"

// CLIConfig holds flag-derived overrides, mirroring the teacher's
// cliConfig/parseFlags split: flags take precedence over environment
// variables for the fields they cover.
type CLIConfig struct {
	LogLevel    string
	ShowVersion bool
}

// ParseFlags parses the agent's command-line flags.
func ParseFlags(args []string) (*CLIConfig, error) {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &CLIConfig{}
	fs.StringVar(&cfg.LogLevel, "log.level", "", "log level override: debug|info|warn|error")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		switch cfg.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, fmt.Errorf("invalid -log.level %q", cfg.LogLevel)
		}
	}

	return cfg, nil
}

// Version returns the build-time version string.
func Version() string { return version }
