// Package main provides dbinspect, a tool to inspect and export the offline cache.
//
// Usage:
//
//	dbinspect stats
//	dbinspect contents --user u1 --offline-only
//	dbinspect export --out cache.json
//
// The daemon holds an exclusive lock on the badger engine; stop it first.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/offline"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// LoadConfig supplies storage defaults from the environment and .env file.
	LoadConfig func() (*config.Config, error)

	Cache *offline.Cache
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		LoadConfig: func() (*config.Config, error) { return config.Load(nil) },
	}
}

// Close closes the cache if Run opened it.
func (m *Main) Close() error {
	if m.Cache != nil {
		return m.Cache.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("dbinspect"),
		kong.Description("Inspect and export the KeepStash offline cache."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'dbinspect --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	storage, err := m.storageConfig(cli)
	if err != nil {
		return err
	}

	opener, err := offline.NewOpener(storage, nil)
	if err != nil {
		return err
	}
	m.Cache = offline.New(opener)
	if err := m.Cache.Init(ctx); err != nil {
		fmt.Fprintf(stderr, "Hint: stop the daemon first, or pass --storage-path\n")
		return fmt.Errorf("failed to open cache at %q: %w", storage.Path, err)
	}
	defer m.Close()

	deps.Cache = m.Cache
	deps.Storage = storage

	return kongCtx.Run()
}

// storageConfig merges command-line flags over the configured storage.
func (m *Main) storageConfig(cli *CLI) (config.StorageConfig, error) {
	var storage config.StorageConfig
	if cli.StoragePath == "" || cli.StorageEngine == "" {
		cfg, err := m.LoadConfig()
		if err != nil {
			return storage, err
		}
		storage = cfg.Storage
	}
	if cli.StoragePath != "" {
		storage.Path = cli.StoragePath
	}
	if cli.StorageEngine != "" {
		storage.Engine = cli.StorageEngine
	}
	return storage, nil
}
