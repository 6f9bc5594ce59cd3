package main

import (
	"fmt"
	"time"
)

// Run executes the stats command.
func (c *StatsCmd) Run(deps *Dependencies) error {
	stats, err := deps.Cache.Stats(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	fmt.Fprintln(deps.Stdout, "=== Offline Cache ===")
	fmt.Fprintf(deps.Stdout, "Engine:            %s\n", deps.Storage.Engine)
	fmt.Fprintf(deps.Stdout, "Path:              %s\n", deps.Storage.Path)
	fmt.Fprintf(deps.Stdout, "Items:             %d\n", stats.Contents)
	fmt.Fprintf(deps.Stdout, "Offline-only:      %d\n", stats.OfflineOnly)
	fmt.Fprintf(deps.Stdout, "Tags:              %d\n", stats.Tags)
	fmt.Fprintf(deps.Stdout, "Last content sync: %s\n", formatSyncTime(stats.LastContentSync))
	fmt.Fprintf(deps.Stdout, "Last tag sync:     %s\n", formatSyncTime(stats.LastTagSync))
	return nil
}

func formatSyncTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
