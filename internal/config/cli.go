package config

import (
	"flag"
	"fmt"
	"io"
)

// CLIFlags holds command-line overrides. A nil field means the flag was not given.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	Mode       *string
	Root       *string
	LogLevel   *string
	NatsURL    *string
}

// ParseFlags parses command-line arguments. Long and short forms are accepted
// (--port / -p, --config / -c, --mode / -m).
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("rhythm-ls", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, port, mode, root, logLevel, natsURL string
	)
	fs.StringVar(&configPath, "config", "", "path to config file (YAML or TOML)")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.StringVar(&port, "port", "", "HTTP port")
	fs.StringVar(&port, "p", "", "shorthand for --port")
	fs.StringVar(&mode, "mode", "", "serving mode: http, stdio or mcp")
	fs.StringVar(&mode, "m", "", "shorthand for --mode")
	fs.StringVar(&root, "root", "", "workspace root to index")
	fs.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &configPath
		case "port", "p":
			out.Port = &port
		case "mode", "m":
			out.Mode = &mode
		case "root":
			out.Root = &root
		case "log-level":
			out.LogLevel = &logLevel
		case "nats-url":
			out.NatsURL = &natsURL
		}
	})
	return out, nil
}

// LoadWithCLI loads configuration using defaults < file < ENV < CLI flags.
func LoadWithCLI(flags CLIFlags) (*Config, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadFile(&cfg, path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.Mode != nil {
		cfg.Server.Mode = *flags.Mode
	}
	if flags.Root != nil {
		cfg.Workspace.Root = *flags.Root
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}
