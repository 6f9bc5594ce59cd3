package main

import (
	"context"
	"io"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/offline"
)

// Dependencies holds everything commands need.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Cache   *offline.Cache
	Storage config.StorageConfig
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	StoragePath   string `name:"storage-path" help:"Cache directory (default: STORAGE_PATH or ~/KeepStash/cache)"`
	StorageEngine string `name:"storage-engine" help:"Cache engine: badger or sqlite (default: STORAGE_ENGINE or badger)"`

	Stats    StatsCmd    `cmd:"" help:"Show cache statistics"`
	Contents ContentsCmd `cmd:"" help:"List a user's cached items"`
	Export   ExportCmd   `cmd:"" help:"Write the whole cache to a JSON file"`
}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct{}

// ContentsCmd is the "contents" subcommand.
type ContentsCmd struct {
	User        string `short:"u" required:"" help:"User ID"`
	OfflineOnly bool   `help:"Only items not yet pushed to the remote"`
	JSON        bool   `name:"json" help:"Print JSON instead of a table"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	Out string `short:"o" required:"" type:"path" help:"Output file"`
}
