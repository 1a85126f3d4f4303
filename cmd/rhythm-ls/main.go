// Command rhythm-ls serves the Rhythm template language service over HTTP,
// the Language Server Protocol (stdio) or the Model Context Protocol (stdio).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfcompiler "github.com/Strob0t/rhythm-ls/internal/adapter/compiler"
	cfhttp "github.com/Strob0t/rhythm-ls/internal/adapter/http"
	"github.com/Strob0t/rhythm-ls/internal/adapter/localfs"
	cflsp "github.com/Strob0t/rhythm-ls/internal/adapter/lsp"
	cfmcp "github.com/Strob0t/rhythm-ls/internal/adapter/mcp"
	cfnats "github.com/Strob0t/rhythm-ls/internal/adapter/nats"
	"github.com/Strob0t/rhythm-ls/internal/adapter/natskv"
	cfotel "github.com/Strob0t/rhythm-ls/internal/adapter/otel"
	"github.com/Strob0t/rhythm-ls/internal/adapter/ristretto"
	"github.com/Strob0t/rhythm-ls/internal/adapter/tiered"
	"github.com/Strob0t/rhythm-ls/internal/adapter/ws"
	"github.com/Strob0t/rhythm-ls/internal/config"
	"github.com/Strob0t/rhythm-ls/internal/logger"
	"github.com/Strob0t/rhythm-ls/internal/port/cache"
	"github.com/Strob0t/rhythm-ls/internal/port/compiler"
	"github.com/Strob0t/rhythm-ls/internal/port/messagequeue"
	"github.com/Strob0t/rhythm-ls/internal/resilience"
	"github.com/Strob0t/rhythm-ls/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithCLI(flags)
	if err != nil {
		return err
	}
	holder := config.NewCLIHolder(cfg, flags)

	// stdio and MCP speak their protocol on stdout.
	logOut := os.Stdout
	if cfg.Server.Mode != config.ModeHTTP {
		logOut = os.Stderr
	}
	log, closeLog := logger.NewWithWriter(cfg.Logging, logOut)
	defer closeLog.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	files, err := localfs.New(cfg.Workspace.Root)
	if err != nil {
		return err
	}

	// --- NATS (optional) ---
	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer func() {
			if err := queue.Close(); err != nil {
				slog.Warn("nats close failed", "error", err)
			}
		}()
	}

	// --- Compiler ---
	comp, breaker, closeCompiler, err := buildCompiler(ctx, cfg, queue, metrics)
	if err != nil {
		return err
	}
	defer closeCompiler()

	// --- Language service ---
	var cacheOpts []service.FileCacheOption
	if cfg.Cache.Locking {
		cacheOpts = append(cacheOpts, service.WithLocking())
	}
	lang := service.NewLanguageService(service.NewFileCache(cacheOpts...), files, comp,
		service.WithExtension(cfg.Workspace.Extension),
		service.WithMetrics(metrics),
	)

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	var mq messagequeue.Queue
	if queue != nil {
		mq = queue
	}
	events := service.NewFileEvents(lang, hub, mq)

	if queue != nil {
		unsubscribe, err := queue.Subscribe(ctx, cfg.NATS.Subject, events.Handle)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	// The first surface to finish stops the others.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watchReload(gctx, holder)
		return nil
	})

	mcpSrv := cfmcp.NewServer(cfmcp.ServerConfig{Name: cfg.MCP.Name, Version: cfg.MCP.Version}, lang)

	switch cfg.Server.Mode {
	case config.ModeHTTP:
		index(ctx, events)
		checks := map[string]func() bool{}
		if queue != nil {
			checks["nats"] = queue.IsConnected
		}
		if breaker != nil {
			checks["compiler"] = func() bool { return breaker.State() != "open" }
		}
		h := &cfhttp.Handlers{Lang: lang, Events: events, Checks: checks, Clients: hub.ConnectionCount}
		g.Go(func() error {
			defer cancel()
			return serveHTTP(gctx, cfg, h, hub, mcpSrv)
		})
	case config.ModeStdio:
		// The editor triggers indexing with its initialize request.
		srv := cflsp.NewServer(os.Stdin, os.Stdout, lang, events, cflsp.Options{
			Root:      files.Root(),
			Extension: cfg.Workspace.Extension,
			Name:      cfg.MCP.Name,
			Version:   cfg.MCP.Version,
		})
		g.Go(func() error {
			defer cancel()
			return untilDone(gctx, func() error { return srv.Serve(gctx) })
		})
	case config.ModeMCP:
		index(ctx, events)
		g.Go(func() error {
			defer cancel()
			return untilDone(gctx, func() error { return mcpSrv.ServeStdio(gctx, os.Stdin, os.Stdout) })
		})
	}

	err = g.Wait()
	slog.Info("rhythm-ls stopped", "mode", cfg.Server.Mode)
	return err
}

// buildCompiler assembles process compiler, breaker and result cache. With
// no command configured it returns a compiler that reports nothing.
func buildCompiler(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, metrics *cfotel.Metrics) (compiler.Compiler, *resilience.Breaker, func(), error) {
	if len(cfg.Compiler.Command) == 0 {
		slog.Info("compiler: no command configured, compiler diagnostics disabled")
		return compiler.Nop{}, nil, func() {}, nil
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to string) {
		slog.Warn("compiler: breaker state changed", "from", from, "to", to)
	})
	proc, err := cfcompiler.NewProcess(cfg.Compiler.Command, cfg.Compiler.Timeout, breaker,
		cfcompiler.WithPool(cfcompiler.NewPool(cfg.Compiler.MaxConcurrent)))
	if err != nil {
		return nil, nil, nil, err
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compile cache: %w", err)
	}
	var results cache.Cache = l1
	if queue != nil && cfg.Cache.L2Bucket != "" {
		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			slog.Warn("compiler: L2 cache unavailable, using L1 only", "bucket", cfg.Cache.L2Bucket, "error", err)
		} else {
			results = tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
		}
	}

	slog.Info("compiler: configured", "command", cfg.Compiler.Command[0], "timeout", cfg.Compiler.Timeout.String(), "max_concurrent", cfg.Compiler.MaxConcurrent)
	closeL1 := func() {
		slog.Info("compiler: cache closed", "l1_hit_ratio", l1.HitRatio())
		l1.Close()
	}
	return cfcompiler.NewCached(proc, results, cfg.Cache.TTL, metrics), breaker, closeL1, nil
}

// index walks the workspace once. A failure leaves the service usable for
// files loaded on demand.
func index(ctx context.Context, events *service.FileEvents) {
	if _, err := events.Index(ctx); err != nil {
		slog.Warn("workspace index failed", "error", err)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, h *cfhttp.Handlers, hub *ws.Hub, mcpSrv *cfmcp.Server) error {
	r := cfhttp.NewRouter(h, cfhttp.RouterConfig{
		CORSOrigin:  cfg.Server.CORSOrigin,
		ServiceName: cfg.OTEL.ServiceName,
		WS:          hub.HandleWS,
	})
	r.Handle("/mcp", mcpSrv.HTTPHandler(cfg.MCP.APIKey))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// untilDone runs a blocking stdio loop and returns when it ends or ctx is
// canceled. A loop blocked on stdin is abandoned; the process exits right after.
func untilDone(ctx context.Context, serve func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// watchReload re-reads the configuration on SIGHUP and applies the log level.
// Other settings take effect on restart.
func watchReload(ctx context.Context, holder *config.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			cfg := holder.Get()
			logger.SetLevel(cfg.Logging.Level)
			slog.Info("config reloaded", "log_level", cfg.Logging.Level)
		}
	}
}
