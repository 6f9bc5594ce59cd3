// Package main provides a tool to seed the offline cache with sample saved items.
//
// It writes a realistic spread of content types, tags and creation dates for
// one user so the web UI has something to search during development.
//
// Usage:
//
//	go run ./cmd/seed --user u1
//	go run ./cmd/seed --user u1 --count 200 --offline-only 5
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/id"
	"github.com/keepstash/keepstash/internal/offline"
)

// CLI defines the seed flags.
type CLI struct {
	User          string `short:"u" required:"" help:"User ID to seed"`
	Count         int    `short:"n" default:"50" help:"Number of synced items to write"`
	OfflineOnly   int    `name:"offline-only" default:"0" help:"Number of extra offline-only items (pushed on the next sync)"`
	Seed          uint64 `default:"1" help:"Random seed; the same seed writes the same items"`
	StoragePath   string `name:"storage-path" help:"Cache directory (default: STORAGE_PATH or ~/KeepStash/cache)"`
	StorageEngine string `name:"storage-engine" help:"Cache engine: badger or sqlite (default: STORAGE_ENGINE or badger)"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("seed"),
		kong.Description("Seed the KeepStash offline cache with sample items."),
	)

	if err := run(context.Background(), cli, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *CLI, stdout io.Writer) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	storage := cfg.Storage
	if cli.StoragePath != "" {
		storage.Path = cli.StoragePath
	}
	if cli.StorageEngine != "" {
		storage.Engine = cli.StorageEngine
	}

	fmt.Fprintf(stdout, "Opening %s cache at: %s\n", storage.Engine, storage.Path)

	opener, err := offline.NewOpener(storage, nil)
	if err != nil {
		return err
	}
	cache := offline.New(opener)
	if err := cache.Init(ctx); err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	return seed(ctx, cache, cli, stdout)
}

func seed(ctx context.Context, cache *offline.Cache, cli *CLI, stdout io.Writer) error {
	rng := rand.New(rand.NewPCG(cli.Seed, cli.Seed^0x5eed))
	g := newGenerator(rng, cli.User, time.Now())

	items, err := g.items(cli.Count)
	if err != nil {
		return err
	}
	if err := cache.Merge(ctx, items); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Cached %d items with %d tags for %s\n", len(items), len(domain.UniqueTags(items)), cli.User)

	drafts, err := g.items(cli.OfflineOnly)
	if err != nil {
		return err
	}
	for _, item := range drafts {
		if err := cache.AddOfflineContent(ctx, item); err != nil {
			return fmt.Errorf("add offline content: %w", err)
		}
	}
	if len(drafts) > 0 {
		fmt.Fprintf(stdout, "Added %d offline-only items\n", len(drafts))
	}
	return nil
}

// generator produces plausible saved items from fixed vocabularies.
type generator struct {
	rng    *rand.Rand
	userID string
	now    time.Time
	tags   map[string]domain.Tag
}

func newGenerator(rng *rand.Rand, userID string, now time.Time) *generator {
	return &generator{rng: rng, userID: userID, now: now, tags: make(map[string]domain.Tag)}
}

var (
	subjects = []string{
		"Go concurrency", "Sourdough baking", "Distributed tracing", "Trail running",
		"Home espresso", "Rust lifetimes", "Watercolor basics", "Postgres indexing",
		"Offline-first apps", "Typography", "Kubernetes networking", "Houseplants",
	}
	formats = []string{
		"A practical guide to %s", "%s in 10 minutes", "Why %s matters",
		"Notes on %s", "%s: common mistakes", "The hidden cost of %s",
	}
	tagNames = []string{
		"golang", "baking", "observability", "running", "coffee", "rust",
		"art", "databases", "architecture", "design", "devops", "plants", "later",
	}
	hosts = []string{"example.com", "blog.example.org", "news.example.net", "video.example.com"}
)

func (g *generator) items(n int) ([]domain.SavedItem, error) {
	items := make([]domain.SavedItem, 0, n)
	for range n {
		itemID, err := id.NewItemID()
		if err != nil {
			return nil, err
		}
		subject := subjects[g.rng.IntN(len(subjects))]
		title := fmt.Sprintf(formats[g.rng.IntN(len(formats))], subject)

		item := domain.SavedItem{
			ID:          itemID,
			UserID:      g.userID,
			Title:       title,
			Description: "Saved while reading about " + subject + ".",
			URL:         fmt.Sprintf("https://%s/%s", hosts[g.rng.IntN(len(hosts))], itemID),
			ContentType: domain.ContentTypes[g.rng.IntN(len(domain.ContentTypes))],
			CreatedAt:   g.now.Add(-time.Duration(g.rng.IntN(365*24)) * time.Hour).UTC(),
		}
		for range g.rng.IntN(4) {
			tag, err := g.tag(tagNames[g.rng.IntN(len(tagNames))])
			if err != nil {
				return nil, err
			}
			if !hasTag(item.Tags, tag.ID) {
				item.Tags = append(item.Tags, tag)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// tag returns the user's tag named name, creating it once.
func (g *generator) tag(name string) (domain.Tag, error) {
	if t, ok := g.tags[name]; ok {
		return t, nil
	}
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return domain.Tag{}, err
	}
	t := domain.Tag{
		ID:            tagID,
		UserID:        g.userID,
		Name:          name,
		AutoGenerated: g.rng.IntN(3) == 0,
		Confirmed:     true,
		CreatedAt:     g.now.UTC(),
	}
	g.tags[name] = t
	return t, nil
}

func hasTag(tags []domain.Tag, tagID string) bool {
	for _, t := range tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}
