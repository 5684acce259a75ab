// DittoBrowse serves a directory tree over HTTP with on-demand thumbnails.
//
// Sub-commands:
//
//	dittobrowse start [flags]   Run the server (default)
//	dittobrowse init [flags]    Write a default configuration file
//	dittobrowse version         Print the version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/config"
	"github.com/marmos91/dittobrowse/pkg/server"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	args := os.Args[1:]
	cmd := "start"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "start":
		err = cmdStart(args)
	case "init":
		err = cmdInit(args)
	case "version":
		fmt.Printf("dittobrowse %s\n", version)
	default:
		err = fmt.Errorf("unknown command %q (expected start, init or version)", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Where to write the file (default: $XDG_CONFIG_HOME/dittobrowse/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func cmdStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittobrowse/config.yaml)")
	root := fs.String("root", "", "Directory to serve (overrides filesystem.root)")
	port := fs.Int("port", 0, "HTTP port (overrides adapters.http.port)")
	logLevel := fs.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides logging.level)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *root != "" {
		cfg.Filesystem.Root = *root
	}
	if *port != 0 {
		cfg.Adapters.HTTP.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}

	logger.Info("DittoBrowse %s starting", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := config.InitializeMetrics(cfg)
	if m.Server != nil {
		go func() {
			if err := m.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	reg, err := config.InitializeRegistry(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	reg.Start()

	defer func() {
		// ctx is already cancelled here.
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := reg.Close(closeCtx); err != nil {
			logger.Error("Shutdown error: %v", err)
		}
	}()

	adapters, err := config.CreateAdapters(cfg, m.HTTP)
	if err != nil {
		return err
	}

	srv := server.New(reg, cfg.Server.ShutdownTimeout)
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
