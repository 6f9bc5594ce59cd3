package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/offline"
)

// Export is the document written by the export command.
type Export struct {
	ExportedAt time.Time              `json:"exported_at"`
	Stats      offline.Stats          `json:"stats"`
	Contents   []domain.OfflineRecord `json:"contents"`
}

// Run executes the export command. The file is replaced atomically so a
// crash never leaves a truncated export behind.
func (c *ExportCmd) Run(deps *Dependencies) error {
	stats, err := deps.Cache.Stats(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	records, err := deps.Cache.AllContents(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	if records == nil {
		records = []domain.OfflineRecord{}
	}

	data, err := json.MarshalIndent(Export{
		ExportedAt: time.Now().UTC(),
		Stats:      stats,
		Contents:   records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	if err := atomic.WriteFile(c.Out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(deps.Stdout, "Exported %d items to %s\n", len(records), c.Out)
	return nil
}
