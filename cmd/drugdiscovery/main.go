// Command drugdiscovery runs the drug discovery research intelligence
// server.
//
// Usage:
//
//	drugdiscovery serve --config config.yaml
//	drugdiscovery validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/agents"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/logger"
	"github.com/kirthikaaMK/drug-discovery/pkg/observability"
	"github.com/kirthikaaMK/drug-discovery/pkg/orchestrator"
	"github.com/kirthikaaMK/drug-discovery/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("drugdiscovery version %s\n", version)
	return nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("Configuration %s is valid\n", cli.Config)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `short:"p" help:"Override the listen port."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics, err := observability.Init(context.Background(), cfg.Metrics.IsEnabled())
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	registry := agent.NewRegistry()
	if err := agents.RegisterAll(registry, cfg, httpclient.New()); err != nil {
		return err
	}

	engine := orchestrator.New(cfg, registry, store, metrics)
	srv := server.New(cfg, engine)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			logger.GetLogger().Error("Shutdown error", "error", err)
		}
		_ = engine.Close()
	}()

	return srv.Start()
}

func openStore(cfg *config.Config) (job.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		return job.NewSQLiteStore(cfg.Storage.Path)
	default:
		return job.NewInMemoryStore(), nil
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("drugdiscovery"),
		kong.Description("Drug discovery research intelligence server"),
		kong.UsageOnError(),
	)

	var logFile *os.File = os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		logFile = f
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), logFile, cli.LogFormat)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
