package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"gorm.io/gorm"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/console"
	"github.com/gluk-w/mcp-ssh/internal/database"
	"github.com/gluk-w/mcp-ssh/internal/dispatch"
	"github.com/gluk-w/mcp-ssh/internal/handlers"
	"github.com/gluk-w/mcp-ssh/internal/logging"
	"github.com/gluk-w/mcp-ssh/internal/mcpserver"
	"github.com/gluk-w/mcp-ssh/internal/secrets"
	"github.com/gluk-w/mcp-ssh/internal/sshaudit"
	"github.com/gluk-w/mcp-ssh/internal/sshclient"
	"github.com/gluk-w/mcp-ssh/internal/sshmanager"
)

const version = "1.0.0"

// app holds everything main has to tear down on exit.
type app struct {
	dispatcher *dispatch.Dispatcher
	db         *gorm.DB
	purge      *sshaudit.PurgeScheduler
}

func main() {
	mode := "stdio"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--rest":
			mode = "rest"
		case "--cli":
			mode = "cli"
		case "--check":
			mode = "check"
		case "--gen-key", "--encrypt-secret":
			runSecretCommand(os.Args[1])
			return
		default:
			log.Fatalf("Unknown argument %q (expected --rest, --cli, --check, --gen-key or --encrypt-secret)", os.Args[1])
		}
	}

	config.Load()
	logging.Init(config.Cfg.LogPath)

	rt, err := setup()
	if err != nil {
		logging.Close()
		log.Fatalf("Startup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	switch mode {
	case "rest":
		runErr = serveREST(ctx, rt)
	case "cli":
		runErr = console.Run(ctx, rt.dispatcher, os.Stdin, os.Stdout, os.Stderr)
	case "check":
		runErr = console.Check(ctx, rt.dispatcher, os.Stdout)
	default:
		runErr = mcpserver.New(rt.dispatcher, version).Serve(ctx, os.Stdin, os.Stdout)
	}
	stop()

	rt.shutdown()
	if runErr != nil {
		if mode != "check" {
			log.Printf("Exiting: %v", runErr)
		}
		logging.Close()
		os.Exit(1)
	}
	logging.Close()
}

// setup builds the dispatcher and, when configured, the audit trail.
func setup() (*app, error) {
	cfg := config.Cfg
	rt := &app{}

	profiles, err := config.LoadProfiles(cfg.ProfilesPath, cfg.ProfilesKey)
	if err != nil {
		return nil, err
	}
	if len(profiles) > 0 {
		log.Printf("Loaded %d connection profiles from %s", len(profiles), cfg.ProfilesPath)
	}

	hostKeys, err := sshclient.HostKeyCallback(cfg.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	if cfg.KnownHostsPath == "" {
		log.Printf("WARNING: SSH_KNOWN_HOSTS not set, host keys are not verified")
	}

	var auditor *sshaudit.Auditor
	if cfg.AuditDBPath != "" {
		db, err := database.Open(cfg.AuditDBPath)
		if err != nil {
			return nil, err
		}
		rt.db = db
		auditor = sshaudit.NewAuditor(db, cfg.AuditRetentionDays)
		purge, err := sshaudit.StartPurgeScheduler(auditor, cfg.AuditPurgeSchedule)
		if err != nil {
			database.Close(db)
			return nil, err
		}
		rt.purge = purge
		log.Printf("Audit log enabled (db=%s, retention=%d days, purge=%q)",
			cfg.AuditDBPath, auditor.RetentionDays(), cfg.AuditPurgeSchedule)
	}

	dialOpts := sshclient.Options{Timeout: cfg.ConnectTimeout, HostKeyCallback: hostKeys}
	dial := func(ctx context.Context, ep config.Endpoint) (*ssh.Client, error) {
		return sshclient.Dial(ctx, ep, dialOpts)
	}
	mgr := sshmanager.NewSSHManager(cfg.MaxConnections, dial)
	mgr.OnConnectionStateChange(func(id string, from, to sshmanager.ConnectionState) {
		log.Printf("[ssh] connection %s: %s -> %s", id, from, to)
	})

	opts := dispatch.Options{Profiles: profiles, Auditor: auditor}
	if ep, ok := cfg.DefaultEndpoint(); ok {
		if err := ep.Validate(); err != nil {
			rt.closeAudit()
			return nil, err
		}
		opts.DefaultEndpoint = &ep
		log.Printf("Default server: %s", ep.Addr())
	}
	rt.dispatcher = dispatch.New(mgr, opts)
	return rt, nil
}

func serveREST(ctx context.Context, rt *app) error {
	api := &handlers.API{Dispatcher: rt.dispatcher, Version: version, Purge: rt.purge}
	srv := &http.Server{
		Addr:              config.Cfg.ListenAddr(),
		Handler:           api.Router(config.Cfg.APIToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if config.Cfg.APIToken == "" {
		log.Printf("WARNING: API_TOKEN not set, REST API is unauthenticated and local file access is disabled")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}

func (rt *app) shutdown() {
	if err := rt.dispatcher.Close(); err != nil {
		log.Printf("SSH manager shutdown: %v", err)
	}
	rt.closeAudit()
}

func (rt *app) closeAudit() {
	rt.purge.Stop()
	if rt.db != nil {
		if err := database.Close(rt.db); err != nil {
			log.Printf("Audit database close: %v", err)
		}
	}
}

// runSecretCommand handles the profile secret helpers: --gen-key prints a new
// key, --encrypt-secret seals the value read from stdin with
// SSHMCP_PROFILES_KEY.
func runSecretCommand(command string) {
	switch command {
	case "--gen-key":
		key, err := secrets.GenerateKey()
		if err != nil {
			log.Fatalf("Failed to generate key: %v", err)
		}
		fmt.Println(key)

	case "--encrypt-secret":
		config.Load()
		if config.Cfg.ProfilesKey == "" {
			fmt.Fprintln(os.Stderr, "Usage: SSHMCP_PROFILES_KEY=<key> mcp-ssh --encrypt-secret < secret.txt")
			os.Exit(1)
		}
		key, err := secrets.ParseKey(config.Cfg.ProfilesKey)
		if err != nil {
			log.Fatalf("Invalid SSHMCP_PROFILES_KEY: %v", err)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("Failed to read secret: %v", err)
		}
		sealed, err := secrets.Seal(strings.TrimRight(string(data), "\r\n"), key)
		if err != nil {
			log.Fatalf("Failed to encrypt secret: %v", err)
		}
		fmt.Println(sealed)
	}
}
