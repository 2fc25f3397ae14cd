// Package daemon wires the dfcache composition root (C7): the
// manager facade, the optional snapshot store, the HTTP transport, the
// MCP gateway, and the health checker, plus signal-driven graceful
// shutdown.
//
// Grounded on the teacher's internal/daemon/daemon.go: the
// LoadConfig-then-wire New()/NewWithConfig() shape and the
// signal.Notify-driven Serve(ctx) graceful-shutdown goroutine are
// carried over; the ~25-subsystem "Phase N" sprawl the teacher wired
// here is trimmed to the set this cache actually needs.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/api"
	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/health"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
	_ "github.com/plusplusoneplusplus/dfcache/internal/infra/metrics" // registers Prometheus collectors
	"github.com/plusplusoneplusplus/dfcache/internal/manager"
	"github.com/plusplusoneplusplus/dfcache/internal/mcp"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/snapshot"
)

// Daemon is the core dfcache runtime. It wires together the manager
// facade and its ambient services (transport, gateway, health, snapshots).
type Daemon struct {
	Config       Config
	Manager      *manager.Manager
	Snapshots    *snapshot.Store
	Server       *api.Server
	MCPGateway   *mcp.Gateway
	MCPTransport *mcp.Transport
	Health       *health.Checker

	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk config.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// decodeTable builds a domain.Table from row-oriented records, the
// shared glue between the HTTP and MCP transports and the columnar
// engine adapter.
func decodeTable(records []map[string]any, columns []string) (domain.Table, error) {
	if len(records) == 0 {
		return nil, domain.InvalidArgument("records must not be empty")
	}
	return tabular.FromRecords(records, columns), nil
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	mgr := manager.NewDefault(manager.Config{
		MaxMemoryBytes:  int64(cfg.Registry.MaxMemoryMB) * 1024 * 1024,
		MaxDatasets:     cfg.Registry.MaxDatasets,
		CleanupInterval: time.Duration(cfg.Registry.CleanupIntervalS) * time.Second,
	})

	d := &Daemon{
		Config:  cfg,
		Manager: mgr,
	}

	if cfg.Snapshot.Enabled {
		snap, err := snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		d.Snapshots = snap
		mgr.SetSnapshotRecorder(snap)

		if prior, err := snap.List(); err != nil {
			log.Printf("[daemon] WARNING: could not list prior snapshots: %v", err)
		} else if len(prior) > 0 {
			log.Printf("[daemon] %d dataset(s) were cached before the last shutdown (not rehydrated)", len(prior))
		}
	}

	var snapshotPinger health.SnapshotPinger
	if d.Snapshots != nil {
		snapshotPinger = d.Snapshots
	}
	d.Health = health.NewChecker(mgr, snapshotPinger)

	d.MCPGateway = mcp.NewGateway(mgr, decodeTable)
	d.MCPTransport = mcp.NewTransport(d.MCPGateway)

	srv := api.NewServer(mgr, decodeTable, d.Health, cfg.API.CORSOrigins)
	srv.SetMCPHandler(d.MCPTransport)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// Serve starts the reaper, health checker, and HTTP listener, blocking
// until ctx is cancelled or a SIGINT/SIGTERM arrives, then drains
// connections with a 30-second grace period.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.Manager.Start()
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Manager.Shutdown()
		if d.Snapshots != nil {
			_ = d.Snapshots.Close()
		}
	}()

	fmt.Printf("dfcache serving on http://%s\n", addr)
	if cfg := d.Config; cfg.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close tears down the daemon abruptly, without draining connections.
// Intended for CLI one-shot commands, not the serve entrypoint.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.Manager.Shutdown()
	if d.Snapshots != nil {
		_ = d.Snapshots.Close()
	}
}
