// Package main is the folio CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hyperjump/folio/internal/cli"
	"github.com/hyperjump/folio/internal/config"
	"github.com/hyperjump/folio/internal/models"
	"github.com/hyperjump/folio/internal/photoimport"
	"github.com/hyperjump/folio/internal/server"
	"github.com/hyperjump/folio/internal/site"
	"github.com/hyperjump/folio/internal/storage"
	"github.com/hyperjump/folio/internal/watcher"
	"github.com/hyperjump/folio/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "folio.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "build":
		err = runBuild(args)
	case "serve":
		err = runServe(args)
	case "import":
		err = runImport(args)
	case "status":
		err = runStatus(args)
	case "init":
		err = runInit(args)
	case "version", "--version", "-v":
		fmt.Printf("folio version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, photoimport.ErrSourceMissing) {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// commonFlags are accepted by every command that reads the config.
type commonFlags struct {
	config  string
	content string
	output  string
	debug   bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.config, "config", defaultConfigPath, "config file path")
	fs.StringVar(&cf.content, "content", "", "content directory (overrides config)")
	fs.StringVar(&cf.output, "out", "", "output directory (overrides config)")
	fs.BoolVar(&cf.debug, "debug", false, "enable debug logging")
	return cf
}

// loadConfig reads the config file, falling back to defaults when it does not
// exist, and applies flag overrides. Override paths are relative to the working directory.
func loadConfig(cf *commonFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cf.config)
	if err != nil {
		return nil, err
	}
	if cf.content != "" {
		if cfg.Paths.ContentDir, err = filepath.Abs(cf.content); err != nil {
			return nil, err
		}
	}
	if cf.output != "" {
		if cfg.Paths.OutputDir, err = filepath.Abs(cf.output); err != nil {
			return nil, err
		}
	}
	if cf.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// setup loads the config and creates the logger.
func setup(cf *commonFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", cf.config),
		zap.String("content_dir", cfg.Paths.ContentDir),
		zap.String("output_dir", cfg.Paths.OutputDir))
	return cfg, logger, nil
}

// openLedger opens the build ledger, or returns nil if it cannot be opened.
// Builds never depend on it.
func openLedger(cfg *config.Config, logger *zap.Logger) *storage.SQLiteLedger {
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("build ledger unavailable", zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
		return nil
	}
	return ledger
}

func newAssembler(cfg *config.Config, logger *zap.Logger, ledger *storage.SQLiteLedger) *site.Assembler {
	opts := []site.Option{site.WithLogger(logger)}
	if ledger != nil {
		opts = append(opts, site.WithRecorder(ledger))
	}
	return site.New(cfg, opts...)
}

// parseInterspersed parses fs while allowing flags to follow or sit between
// positional arguments; Go's flag package stops at the first non-flag argument.
// It returns the positional arguments in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	output := fs.String("format", "text", "report format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ledger := openLedger(cfg, logger)
	if ledger != nil {
		defer ledger.Close()
	}
	report, err := newAssembler(cfg, logger, ledger).Build(context.Background())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return cli.WriteBuildReport(os.Stdout, report, format)
}

// rebuilder serializes builds: the watcher and the HTTP endpoint may both ask for one.
type rebuilder struct {
	mu        sync.Mutex
	assembler *site.Assembler
	logger    *zap.Logger
}

func (r *rebuilder) Build(ctx context.Context) (*models.BuildReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assembler.Build(ctx)
}

func (r *rebuilder) onChange(paths []string) {
	r.logger.Info("content changed, rebuilding", zap.Int("files", len(paths)))
	if _, err := r.Build(context.Background()); err != nil {
		r.logger.Error("rebuild failed", zap.Error(err))
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	host := fs.String("host", "", "listen host (overrides config)")
	port := fs.Int("port", 0, "listen port (overrides config)")
	watch := fs.Bool("watch", false, "rebuild when content changes")
	noBuild := fs.Bool("no-build", false, "serve the existing output without building first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ledger := openLedger(cfg, logger)
	if ledger != nil {
		defer ledger.Close()
	}
	rb := &rebuilder{assembler: newAssembler(cfg, logger, ledger), logger: logger}
	if !*noBuild {
		if _, err := rb.Build(context.Background()); err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *watch {
		opts := []watcher.WatcherOption{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
			watcher.WithExclude(cfg.Paths.OutputDir),
		}
		if cfg.Debug {
			opts = append(opts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(cfg.Paths.ContentDir, cfg.Watch.Extensions, rb.onChange, opts...)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		logger.Info("watching for changes", zap.String("content_dir", cfg.Paths.ContentDir))
	}

	srvOpts := []server.Option{server.WithRebuild(rb.Build)}
	if ledger != nil {
		srvOpts = append(srvOpts, server.WithHistory(ledger))
	}
	srv := server.NewServer(cfg.Paths.OutputDir, &cfg.Server, logger, srvOpts...)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	fmt.Printf("Serving %s at http://%s\n", cfg.Paths.OutputDir, srv.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	maxWidth := fs.Int("max-width", 0, "maximum width in pixels (overrides config)")
	maxHeight := fs.Int("max-height", 0, "maximum height in pixels (overrides config)")
	quality := fs.Int("quality", 0, "JPEG quality 1-100 (overrides config)")
	converter := fs.String("converter", "", "image converter binary (overrides config)")
	output := fs.String("format", "text", "report format: text or json")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return errors.New("usage: folio import [flags] <source-dir> <gallery>")
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := photoimport.Options{
		SourceDir:  positional[0],
		ContentDir: cfg.Paths.ContentDir,
		Gallery:    positional[1],
		MaxWidth:   firstPositive(*maxWidth, cfg.Import.MaxWidth),
		MaxHeight:  firstPositive(*maxHeight, cfg.Import.MaxHeight),
		Quality:    firstPositive(*quality, cfg.Import.Quality),
	}
	if opts.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", opts.Quality)
	}
	binary := cfg.Import.Converter
	if *converter != "" {
		binary = *converter
	}
	imOpts := []photoimport.Option{photoimport.WithLogger(logger)}
	if r := (photoimport.ExecResizer{Binary: binary}); r.Available() {
		imOpts = append(imOpts, photoimport.WithResizer(r))
	} else {
		logger.Info("image converter not found, copying unresized", zap.String("converter", binary))
	}

	report, err := photoimport.New(imOpts...).Import(context.Background(), opts)
	if err != nil {
		return err
	}
	return cli.WriteImportReport(os.Stdout, report, format)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	output := fs.String("format", "text", "report format: text or json")
	limit := fs.Int("limit", 5, "number of recent builds to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer logger.Sync()

	usage, err := storage.DiskUsage(cfg.Paths.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to measure output: %w", err)
	}
	st := &cli.Status{OutputDir: cfg.Paths.OutputDir, OutputFiles: usage.Files, OutputBytes: usage.Bytes}

	if _, err := os.Stat(cfg.Storage.DatabasePath); err == nil {
		ledger := openLedger(cfg, logger)
		if ledger != nil {
			defer ledger.Close()
			ctx := context.Background()
			if st.Builds, err = ledger.CountBuilds(ctx); err != nil {
				return err
			}
			if st.Recent, err = ledger.ListBuilds(ctx, *limit); err != nil {
				return err
			}
		}
	}
	return cli.WriteStatus(os.Stdout, st, format, time.Now())
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("config", defaultConfigPath, "config file to create")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *path)
	return nil
}

func printUsage() {
	fmt.Println(`folio - static site generator for posts, projects and photo galleries

Usage:
  folio build [flags]                          Build the site into the output directory
  folio serve [flags]                          Build, then serve the output locally
  folio import [flags] <source-dir> <gallery>  Resize and copy JPEGs into a gallery
  folio status [flags]                         Show output size and recent builds
  folio init [flags]                           Write a default folio.yaml
  folio version                                Show version
  folio help                                   Show this help

Common Flags:
  --config string    Config file path (default: folio.yaml; defaults apply if missing)
  --content string   Content directory (overrides config)
  --out string       Output directory (overrides config)
  --debug            Enable debug logging

Build/Import/Status Flags:
  --format string    Report format: text or json (default: text)

Serve Flags:
  --host string      Listen host (default from config: localhost)
  --port int         Listen port (default from config: 8000)
  --watch            Rebuild when content changes
  --no-build         Serve the existing output without building first

Import Flags:
  --max-width int    Maximum width in pixels (default from config: 2400)
  --max-height int   Maximum height in pixels (default from config: 2400)
  --quality int      JPEG quality (default from config: 85)
  --converter string Image converter binary (default from config: magick)

Examples:
  folio build
  folio serve --watch --port 8080
  folio import ~/Pictures/kyoto autumn-in-kyoto --quality 80
  folio status --format json`)
}
