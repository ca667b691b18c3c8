// Command server runs the group booking API, or with -worker the mail worker
// that drains the notification queue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/internal/app"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	"github.com/charlesng35/groupdesk/pkg/logger"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

type options struct {
	configPath string
	issueFor   string
	issueEmail string
	worker     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "groupdesk: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("groupdesk-server", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "Configuration directory, or a config.yaml inside one")
	fs.StringVar(&opts.issueFor, "issue-token", "", "Print an access token for this user id and exit (development only)")
	fs.StringVar(&opts.issueEmail, "email", "", "E-mail claim for -issue-token")
	fs.BoolVar(&opts.worker, "worker", false, "Run the notification mail worker instead of the HTTP server")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.issueEmail != "" && opts.issueFor == "" {
		return options{}, errors.New("-email requires -issue-token")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(opts.configPath)
	if err != nil {
		return err
	}
	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if opts.issueFor != "" {
		return issueToken(cfg, opts.issueFor, opts.issueEmail, out)
	}

	if err := app.ConfigureLogging(cfg.Server, opts.worker); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")
	for _, key := range generated {
		log.Warn("generated runtime secret; tokens will not survive a restart", zap.String("key", key))
	}

	if opts.worker {
		return runMailWorker(ctx, cfg, logger.WithModule("mail-worker"))
	}
	return serve(ctx, cfg, log)
}

// serve runs the API until ctx is cancelled or the listener fails.
func serve(ctx context.Context, cfg *app.Config, log *zap.Logger) error {
	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stack.Shutdown(stopCtx, log)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	// Websocket streams are hijacked connections and are closed by the hub,
	// not by Shutdown.
	server.RegisterOnShutdown(stack.Hub.Close)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		listenErr <- server.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-listenErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// loadApplicationConfig accepts either a directory or the config file itself.
func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	case err != nil:
		return nil, fmt.Errorf("stat config path: %w", err)
	case info.IsDir():
		return app.LoadConfig(path)
	default:
		return app.LoadConfig(filepath.Dir(path))
	}
}

// issueToken prints a token signed with the configured secret. Production
// tokens come from the external identity provider.
func issueToken(cfg *app.Config, userID, email string, out io.Writer) error {
	tokens, err := cfg.Auth.TokenService()
	if err != nil {
		return err
	}
	token, err := tokens.Issue(iauth.Identity{UserID: userID, Email: email})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
