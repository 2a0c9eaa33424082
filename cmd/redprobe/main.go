package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/config"
	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/logging"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/server"
)

// headerFlags collects repeated -H "Name: value" flags.
type headerFlags []headers.Field

func (h *headerFlags) String() string {
	parts := make([]string, len(*h))
	for i, f := range *h {
		parts[i] = f.Name + ": " + f.Value
	}
	return strings.Join(parts, ", ")
}

func (h *headerFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("header %q must look like \"Name: value\"", v)
	}
	*h = append(*h, headers.Field{Name: name, Value: strings.TrimSpace(value)})
	return nil
}

type options struct {
	configPath string
	url        string
	method     string
	headers    headerFlags
	descend    bool
	serve      bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("redprobe", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.url, "url", "", "URL to check")
	fs.StringVar(&opts.method, "method", "GET", "Request method")
	fs.Var(&opts.headers, "H", "Request header as \"Name: value\" (repeatable)")
	fs.BoolVar(&opts.descend, "descend", false, "Also check resources linked from an HTML page")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API instead of running one check")
	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("parse flags: %w", err)
	}
	if !opts.serve && opts.url == "" {
		return options{}, errors.New("either -url or -serve is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if opts.descend {
		cfg.Descend.Enabled = true
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	if err := run(opts, cfg, logger, os.Stdout); err != nil {
		logger.Error("redprobe failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(opts options, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	if opts.serve {
		return app.Run(ctx)
	}
	defer func() { _ = app.Close() }()

	req := message.NewRequest(strings.ToUpper(opts.method), opts.url, opts.headers...)
	res := app.Check(ctx, req, opts.descend)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
