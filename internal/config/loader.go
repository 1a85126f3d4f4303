package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for configuration.
const DefaultConfigFile = "rhythm-ls.yaml"

// Load returns a Config using the hierarchy: defaults < file < ENV.
// The config file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given file path using the
// hierarchy: defaults < file < ENV. Files ending in .toml are decoded as
// TOML, everything else as YAML. The file is optional.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(&cfg, path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadTOML(cfg, path)
	}
	return loadYAML(cfg, path)
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadTOML reads the TOML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadTOML(cfg *Config, path string) error {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "RHYTHM_PORT")
	setString(&cfg.Server.CORSOrigin, "RHYTHM_CORS_ORIGIN")
	setString(&cfg.Server.Mode, "RHYTHM_MODE")

	setString(&cfg.Workspace.Root, "RHYTHM_WORKSPACE_ROOT")
	setString(&cfg.Workspace.Extension, "RHYTHM_EXTENSION")

	setFields(&cfg.Compiler.Command, "RHYTHM_COMPILER_COMMAND")
	setDuration(&cfg.Compiler.Timeout, "RHYTHM_COMPILER_TIMEOUT")
	setInt(&cfg.Compiler.MaxConcurrent, "RHYTHM_COMPILER_MAX_CONCURRENT")

	setInt(&cfg.Breaker.MaxFailures, "RHYTHM_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "RHYTHM_BREAKER_TIMEOUT")

	// Cache
	setBool(&cfg.Cache.Locking, "RHYTHM_CACHE_LOCKING")
	setInt64(&cfg.Cache.L1MaxSizeMB, "RHYTHM_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "RHYTHM_CACHE_TTL")
	setString(&cfg.Cache.L2Bucket, "RHYTHM_CACHE_L2_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "RHYTHM_NATS_SUBJECT")

	setString(&cfg.Logging.Level, "RHYTHM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RHYTHM_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RHYTHM_LOG_ASYNC")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "RHYTHM_OTEL_SERVICE_NAME")
	setString(&cfg.MCP.APIKey, "RHYTHM_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	switch cfg.Server.Mode {
	case ModeHTTP:
		if cfg.Server.Port == "" {
			return errors.New("server.port is required in http mode")
		}
	case ModeStdio, ModeMCP:
	default:
		return fmt.Errorf("server.mode %q must be one of http, stdio, mcp", cfg.Server.Mode)
	}
	if cfg.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	if !strings.HasPrefix(cfg.Workspace.Extension, ".") {
		return errors.New("workspace.extension must start with '.'")
	}
	if cfg.Compiler.Timeout <= 0 {
		return errors.New("compiler.timeout must be > 0")
	}
	if cfg.Compiler.MaxConcurrent < 1 {
		return errors.New("compiler.max_concurrent must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFields(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.Fields(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
