// Package config provides hierarchical configuration loading for rhythm-ls.
// Precedence: defaults < config file (YAML or TOML) < environment variables < CLI flags.
package config

import "time"

// Serving modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
	ModeMCP   = "mcp"
)

// Config holds all runtime configuration for the Rhythm language service.
type Config struct {
	Server    Server    `yaml:"server" toml:"server"`
	Workspace Workspace `yaml:"workspace" toml:"workspace"`
	Compiler  Compiler  `yaml:"compiler" toml:"compiler"`
	Breaker   Breaker   `yaml:"breaker" toml:"breaker"`
	Cache     Cache     `yaml:"cache" toml:"cache"`
	NATS      NATS      `yaml:"nats" toml:"nats"`
	Logging   Logging   `yaml:"logging" toml:"logging"`
	OTEL      OTEL      `yaml:"otel" toml:"otel"`
	MCP       MCP       `yaml:"mcp" toml:"mcp"`
}

// Server holds the outer surface configuration.
type Server struct {
	Port       string `yaml:"port" toml:"port"`
	CORSOrigin string `yaml:"cors_origin" toml:"cors_origin"`
	Mode       string `yaml:"mode" toml:"mode"` // "http" | "stdio" | "mcp" (default: "http")
}

// Workspace locates the template tree scanned at startup.
type Workspace struct {
	Root      string `yaml:"root" toml:"root"`           // Directory walked by Initialize (default: ".")
	Extension string `yaml:"extension" toml:"extension"` // Template extension (default: ".rhy")
}

// Compiler configures the external Rhythm compiler process.
// An empty Command disables compiler diagnostics.
type Compiler struct {
	Command []string      `yaml:"command" toml:"command"` // e.g. ["rhythmc", "check", "--json"]
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// MaxConcurrent caps simultaneous compiler processes (default: 4).
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent"`
}

// Breaker holds circuit breaker configuration for compiler calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures" toml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
}

// Cache configures the file cache and the compile-result cache.
type Cache struct {
	Locking     bool          `yaml:"locking" toml:"locking"`               // Serialize file cache writers (default: true)
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb" toml:"l1_max_size_mb"` // Ristretto budget for compile results
	TTL         time.Duration `yaml:"ttl" toml:"ttl"`                       // Compile result lifetime
	L2Bucket    string        `yaml:"l2_bucket" toml:"l2_bucket"`           // NATS KV bucket; empty disables L2
}

// NATS holds NATS JetStream configuration. An empty URL disables file-change events.
type NATS struct {
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level" toml:"level"`
	Service string `yaml:"service" toml:"service"`
	Async   bool   `yaml:"async" toml:"async"`
}

// OTEL holds OpenTelemetry exporter configuration. An empty Endpoint keeps
// the global no-op providers.
type OTEL struct {
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// MCP holds the Model Context Protocol server identity. In http mode the
// server is also mounted at /mcp, guarded by APIKey when set.
type MCP struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
			Mode:       ModeHTTP,
		},
		Workspace: Workspace{
			Root:      ".",
			Extension: ".rhy",
		},
		Compiler: Compiler{
			Timeout:       10 * time.Second,
			MaxConcurrent: 4,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			Locking:     true,
			L1MaxSizeMB: 64,
			TTL:         10 * time.Minute,
		},
		NATS: NATS{
			Subject: "rhythm.files.changed",
		},
		Logging: Logging{
			Level:   "info",
			Service: "rhythm-ls",
		},
		OTEL: OTEL{
			ServiceName: "rhythm-ls",
		},
		MCP: MCP{
			Name:    "rhythm-ls",
			Version: "0.1.0",
		},
	}
}
