package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
)

// Run executes the contents command.
func (c *ContentsCmd) Run(deps *Dependencies) error {
	var (
		records []domain.OfflineRecord
		err     error
	)
	if c.OfflineOnly {
		records, err = deps.Cache.GetOfflineOnlyContents(deps.Ctx, c.User)
	} else {
		records, err = deps.Cache.GetOfflineContents(deps.Ctx, c.User)
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	if c.JSON {
		if records == nil {
			records = []domain.OfflineRecord{}
		}
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintf(deps.Stdout, "No cached items for user %s.\n", c.User)
		return nil
	}

	w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE\tTAGS\tSYNCED\tOFFLINE-ONLY")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			r.ID,
			r.ContentType,
			truncate(r.Title, 48),
			strings.Join(r.TagNames(), ","),
			r.LastSyncedAt.Local().Format(time.DateTime),
			r.IsOfflineOnly,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "\n%d items\n", len(records))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
