// ABOUTME: Gateway orchestrator that wires the routing backend, sessions, and tools
// ABOUTME: Runs the MCP server over HTTP or stdio and owns the ledger lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/2389/rendezvous-mcp/internal/auth"
	"github.com/2389/rendezvous-mcp/internal/config"
	"github.com/2389/rendezvous-mcp/internal/l402"
	"github.com/2389/rendezvous-mcp/internal/ledger"
	"github.com/2389/rendezvous-mcp/internal/mcp"
	"github.com/2389/rendezvous-mcp/internal/metrics"
	"github.com/2389/rendezvous-mcp/internal/rendezvous"
	"github.com/2389/rendezvous-mcp/internal/routing"
	"github.com/2389/rendezvous-mcp/internal/session"
	"github.com/2389/rendezvous-mcp/internal/tools"
	"github.com/2389/rendezvous-mcp/internal/valhalla"
)

// ServerName is reported by initialize and /health.
const ServerName = "rendezvous-mcp"

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Options carries dependencies that are not part of the config file.
type Options struct {
	Version string
	// Backend replaces the Valhalla client. Used by tests.
	Backend routing.Backend
}

// Gateway owns every server component for one process.
type Gateway struct {
	config   *config.Config
	logger   *slog.Logger
	info     mcp.ServerInfo
	backend  routing.Backend
	ledger   ledger.Ledger
	metrics  *metrics.Metrics
	sessions *session.Manager
	registry *tools.Registry
	verifier auth.TokenVerifier

	httpServer *http.Server
	mcpServer  *mcp.Server

	closeOnce sync.Once
	closeErr  error
}

// New builds a gateway from configuration. The caller must call Shutdown
// (or let Run return) to release the ledger.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	g := &Gateway{
		config:  cfg,
		logger:  logger,
		info:    mcp.ServerInfo{Name: ServerName, Version: version},
		backend: opts.Backend,
	}
	if g.backend == nil {
		g.backend = valhalla.New(valhalla.Config{
			BaseURL:   cfg.Routing.BaseURL,
			Timeout:   cfg.Routing.Timeout,
			UserAgent: ServerName + "/" + version,
			Logger:    logger,
		})
	}

	if cfg.Metrics.Enabled {
		g.metrics = metrics.New(metrics.DefaultNamespace)
	}

	if cfg.Database.Path != "" {
		l, err := ledger.NewSQLiteLedger(ExpandHome(cfg.Database.Path))
		if err != nil {
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		g.ledger = l
	}

	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			_ = g.closeLedger()
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		g.verifier = v
	}

	// stdio serves one client for the life of the process.
	ttl := cfg.Server.SessionTTL
	if cfg.Server.Transport == config.TransportStdio {
		ttl = 0
	}
	g.sessions = session.NewManager(g.newRoutingGateway, ttl)
	if l := g.ledger; l != nil {
		g.sessions.OnDelete(func(sess *session.Session, hadCredentials bool) {
			recordCleared(l, logger, sess, hadCredentials)
		})
	}

	g.registry = tools.NewRegistry(logger)
	if err := g.registry.RegisterPack(rendezvous.NewPack(rendezvous.Config{
		Ledger: g.ledger,
		Logger: logger,
	})); err != nil {
		_ = g.closeLedger()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return g, nil
}

// newRoutingGateway is the session.GatewayFactory: every session gets its
// own authorizing gateway around its own credential store.
func (g *Gateway) newRoutingGateway(creds *l402.CredentialStore) (*routing.Gateway, error) {
	return routing.NewGateway(routing.GatewayConfig{
		Backend:                g.backend,
		Credentials:            creds,
		BaseURL:                g.config.Routing.BaseURL,
		LegacyHeaderChallenges: g.config.Routing.LegacyHeaderChallenges,
		Observer:               g.observer(),
		Logger:                 g.logger,
	})
}

// observer returns the routing observers that are enabled, or nil.
func (g *Gateway) observer() routing.Observer {
	var obs routing.Observers
	if g.metrics != nil {
		obs = append(obs, g.metrics)
	}
	if g.ledger != nil {
		obs = append(obs, &ledger.Observer{Ledger: g.ledger, Logger: g.logger})
	}
	if len(obs) == 0 {
		return nil
	}
	return obs
}

func (g *Gateway) toolObserver() mcp.ToolCallObserver {
	if g.metrics == nil {
		return nil
	}
	return g.metrics
}

func (g *Gateway) sessionGauge() interface{ SetSessions(n int) } {
	if g.metrics == nil {
		return nil
	}
	return g.metrics
}

// recordCleared notes in the ledger that a session's credential was
// discarded with the session.
func recordCleared(l ledger.Ledger, logger *slog.Logger, sess *session.Session, hadCredentials bool) {
	if !hadCredentials {
		return
	}
	// The request context may already be gone when a session is swept.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.RecordCredentialEvent(ctx, sess.ID, ledger.CredentialCleared); err != nil {
		logger.Warn("failed to record credential event", "session_id", sess.ID, "error", err)
	}
}

// Handler builds the HTTP mux: /mcp, /health, and the metrics endpoint
// when enabled.
func (g *Gateway) Handler() (http.Handler, error) {
	if g.mcpServer == nil {
		srv, err := mcp.NewServer(mcp.Config{
			Registry:      g.registry,
			Sessions:      g.sessions,
			Info:          g.info,
			Logger:        g.logger,
			TokenVerifier: g.verifier,
			RequireAuth:   g.config.Auth.Required,
			Observer:      g.toolObserver(),
			SessionGauge:  g.sessionGauge(),
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		g.mcpServer = srv
	}

	mux := http.NewServeMux()
	g.mcpServer.RegisterRoutes(mux)
	if g.metrics != nil {
		mux.Handle("GET "+g.config.Metrics.Path, g.metrics.Handler())
	}
	return mux, nil
}

// Run serves the configured transport until ctx is cancelled or the
// transport fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	defer func() { _ = g.closeLedger() }()

	if g.config.Server.Transport == config.TransportStdio {
		return g.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	return g.ServeHTTP(ctx, ln)
}

// ServeStdio serves newline-delimited JSON-RPC on in and out.
func (g *Gateway) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	srv, err := mcp.NewStdioServer(mcp.StdioConfig{
		Registry: g.registry,
		Sessions: g.sessions,
		Info:     g.info,
		Logger:   g.logger,
		Observer: g.toolObserver(),
	})
	if err != nil {
		return fmt.Errorf("creating stdio server: %w", err)
	}

	g.logger.Info("serving MCP over stdio", "tools", g.registry.Names())
	err = srv.Serve(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeHTTP serves the HTTP transport on ln until ctx is cancelled.
func (g *Gateway) ServeHTTP(ctx context.Context, ln net.Listener) error {
	handler, err := g.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}
	g.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan struct{})
	defer close(stop)
	if ttl := g.config.Server.SessionTTL; ttl > 0 {
		go g.mcpServer.SweepSessions(sweepInterval(ttl), stop)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "tools", g.registry.Names())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already
// cancelled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, if any, and closes the ledger.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error
	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if err := g.closeLedger(); err != nil {
		errs = append(errs, fmt.Errorf("closing ledger: %w", err))
	}
	return errors.Join(errs...)
}

func (g *Gateway) closeLedger() error {
	g.closeOnce.Do(func() {
		if g.ledger != nil {
			g.closeErr = g.ledger.Close()
		}
	})
	return g.closeErr
}

// sweepInterval checks for idle sessions a few times per TTL, at most once
// a second and at least once a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
