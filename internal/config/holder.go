package config

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the active configuration and swaps it atomically on Reload.
type Holder struct {
	path  string
	flags *CLIFlags
	cur   atomic.Pointer[Config]
}

// NewHolder wraps cfg. Reload re-reads path with the usual hierarchy.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// NewCLIHolder wraps cfg loaded by LoadWithCLI. Reload re-applies flags on
// top of the file and environment so command-line overrides survive.
func NewCLIHolder(cfg *Config, flags CLIFlags) *Holder {
	h := &Holder{flags: &flags}
	h.cur.Store(cfg)
	return h
}

// Get returns the active configuration.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Reload loads the config file again. On failure the previous configuration stays active.
func (h *Holder) Reload() error {
	var (
		cfg *Config
		err error
	)
	if h.flags != nil {
		cfg, err = LoadWithCLI(*h.flags)
	} else {
		cfg, err = LoadFrom(h.path)
	}
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	h.cur.Store(cfg)
	return nil
}
