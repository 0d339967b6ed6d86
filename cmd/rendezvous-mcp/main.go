// ABOUTME: Entry point for the rendezvous-mcp server and its admin commands
// ABOUTME: Serves MCP over stdio or HTTP and inspects the payment challenge ledger

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/rendezvous-mcp/internal/auth"
	"github.com/2389/rendezvous-mcp/internal/config"
	"github.com/2389/rendezvous-mcp/internal/gateway"
	"github.com/2389/rendezvous-mcp/internal/ledger"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                    _
 _ __ ___ _ __   __| | ___ ______   _____  _   _ ___
| '__/ _ \ '_ \ / _' |/ _ \_  /\ \ / / _ \| | | / __|
| | |  __/ | | | (_| |  __// /  \ V / (_) | |_| \__ \
|_|  \___|_| |_|\__,_|\___/___|  \_/ \___/ \__,_|___/
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: rendezvous-mcp [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                  Start the MCP server (default)")
	fmt.Fprintln(w, "  health                 Check a running HTTP server")
	fmt.Fprintln(w, "  challenges             List recorded payment challenges")
	fmt.Fprintln(w, "  token --subject NAME   Mint a bearer token for the HTTP transport")
	fmt.Fprintln(w, "  version                Print the version")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	var err error
	switch command {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "challenges":
		err = runChallenges(ctx, args, os.Stdout)
	case "token":
		err = runToken(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadDefault()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	// Everything human-facing goes to stderr; stdout may be the transport.
	printStartup(os.Stderr, cfg, configPath)

	logger.Info("starting rendezvous-mcp",
		"version", version,
		"config", configPath,
		"transport", cfg.Server.Transport,
		"routing_base_url", cfg.Routing.BaseURL,
	)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func printStartup(w io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	if configPath == "" {
		configPath = "(defaults)"
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s\n", configPath)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Transport: %s", cfg.Server.Transport)
	if cfg.Server.Transport == config.TransportHTTP {
		fmt.Fprintf(w, " on %s", cfg.Server.HTTPAddr)
		if cfg.Auth.Required {
			yellow.Fprint(w, " [auth required]")
		}
	}
	fmt.Fprintln(w)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Routing:   %s\n", cfg.Routing.BaseURL)
	if cfg.Database.Path != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Ledger:    %s\n", gateway.ExpandHome(cfg.Database.Path))
	}
	if cfg.Metrics.Enabled && cfg.Server.Transport == config.TransportHTTP {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Fprintln(w)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", dialAddr(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println(string(body))
	return nil
}

// dialAddr turns a wildcard listen address into one a client can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func runChallenges(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("challenges", flag.ContinueOnError)
	sessionID := fs.String("session", "", "only challenges issued to this session")
	since := fs.Duration("since", 0, "only challenges newer than this, e.g. 24h")
	limit := fs.Int("limit", 20, "maximum rows to list (0 for all)")
	dbPath := fs.String("db", "", "ledger path (default: database.path from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("--limit must not be negative")
	}

	path := *dbPath
	if path == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Database.Path
	}
	if path == "" {
		return errors.New("no ledger configured: set database.path or pass --db")
	}
	path = gateway.ExpandHome(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	l, err := ledger.NewSQLiteLedger(path)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	filter := ledger.ChallengeFilter{Limit: *limit}
	if *sessionID != "" {
		filter.SessionID = sessionID
	}
	if *since > 0 {
		t := time.Now().Add(-*since).UTC()
		filter.Since = &t
	}

	records, err := l.ListChallenges(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing challenges: %w", err)
	}
	filter.Limit = 0
	stats, err := l.Stats(ctx, filter)
	if err != nil {
		return fmt.Errorf("computing stats: %w", err)
	}

	return printChallenges(out, records, stats)
}

func printChallenges(out io.Writer, records []*ledger.ChallengeRecord, stats *ledger.ChallengeStats) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tOPERATION\tSATS\tPAYMENT HASH\tNOTE")
	for _, r := range records {
		note := ""
		if r.Degraded {
			note = "unparseable"
		}
		hash := r.PaymentHash
		if hash == "" {
			hash = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			shortID(r.SessionID),
			r.Operation,
			r.AmountSats,
			hash,
			note,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	color.New(color.FgCyan).Fprintf(out, "%d challenge(s), %d sats requested", stats.Count, stats.TotalSats)
	if stats.Degraded > 0 {
		color.New(color.FgYellow).Fprintf(out, ", %d unparseable", stats.Degraded)
	}
	fmt.Fprintln(out)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "identity the token is issued to (required)")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("--subject is required")
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", orDefaults(configPath))
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

func orDefaults(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
