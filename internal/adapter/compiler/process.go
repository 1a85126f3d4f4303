// Package compiler runs the external Rhythm compiler and memoizes its results.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	cfotel "github.com/Strob0t/rhythm-ls/internal/adapter/otel"
	"github.com/Strob0t/rhythm-ls/internal/domain"
	"github.com/Strob0t/rhythm-ls/internal/port/compiler"
	"github.com/Strob0t/rhythm-ls/internal/resilience"
)

const (
	maxStderr = 512
	// waitDelay bounds how long Run waits for grandchildren holding the pipes after a kill.
	waitDelay = time.Second
)

var _ compiler.Compiler = (*Process)(nil)

// Process compiles templates by piping them to a child process that prints
// {"errors":[...],"warnings":[...]} on stdout.
type Process struct {
	command []string
	timeout time.Duration
	breaker *resilience.Breaker
	pool    *Pool

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithPool runs compilations through pool.
func WithPool(pool *Pool) ProcessOption {
	return func(p *Process) { p.pool = pool }
}

// NewProcess returns a compiler running command. A nil breaker disables circuit breaking.
func NewProcess(command []string, timeout time.Duration, breaker *resilience.Breaker, opts ...ProcessOption) (*Process, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("compiler command is empty")
	}
	p := &Process{
		command:     command,
		timeout:     timeout,
		breaker:     breaker,
		execCommand: exec.CommandContext,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Compile runs the compiler on content.
func (p *Process) Compile(ctx context.Context, content string) (*compiler.Result, error) {
	ctx, span := cfotel.StartCompileSpan(ctx, len(content))
	defer span.End()

	run := func() (*compiler.Result, error) { return p.run(ctx, content) }

	var (
		res *compiler.Result
		err error
	)
	if p.breaker != nil {
		res, err = resilience.Call(p.breaker, run)
	} else {
		res, err = run()
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", domain.ErrCompilerUnavailable, err)
	}
	return res, nil
}

// run waits for a pool slot; the timeout only covers the process itself.
func (p *Process) run(ctx context.Context, content string) (*compiler.Result, error) {
	var res *compiler.Result
	err := p.pool.Run(ctx, func() error {
		var err error
		res, err = p.runProcess(ctx, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Process) runProcess(ctx context.Context, content string) (*compiler.Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := p.execCommand(ctx, p.command[0], p.command[1:]...) //nolint:gosec // command from trusted config
	cmd.Stdin = strings.NewReader(content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("compile: %w", ctxErr)
	}

	// Compilers commonly exit non-zero when they report errors, so a
	// parseable report wins over the exit status.
	var res compiler.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("compile: %s: %w", truncate(stderr.String()), runErr)
		}
		return nil, fmt.Errorf("parse compiler output: %w", err)
	}

	slog.DebugContext(ctx, "compiler: finished",
		"errors", len(res.Errors), "warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds())
	return &res, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
