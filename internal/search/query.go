package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
)

// DefaultLimit is the page size used when Options.Limit is not positive.
const DefaultLimit = 50

// maxSuggestions caps Result.Suggestions.
const maxSuggestions = 5

// MatchMode selects how the query text is matched against an item.
type MatchMode uint8

const (
	// MatchTokens requires every whitespace-separated query token to appear
	// as a substring, in any order. It is the default.
	MatchTokens MatchMode = iota
	// MatchSubstring requires the whole query to appear as a substring.
	MatchSubstring
	// MatchExact requires the whole query to appear as a substring and takes
	// precedence over token matching when both are requested.
	MatchExact
)

// String returns the wire name of the mode.
func (m MatchMode) String() string {
	switch m {
	case MatchSubstring:
		return "substring"
	case MatchExact:
		return "exact"
	default:
		return "tokens"
	}
}

// ParseMatchMode converts a wire name into a MatchMode. An empty string is MatchTokens.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tokens", "fuzzy":
		return MatchTokens, nil
	case "substring":
		return MatchSubstring, nil
	case "exact":
		return MatchExact, nil
	default:
		return MatchTokens, fmt.Errorf("unknown match mode %q", s)
	}
}

// DateRange bounds CreatedAt inclusively. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Filters narrow the result set after text matching. Every set field must pass.
type Filters struct {
	ContentType domain.ContentType // exact match
	TagNames    []string           // item passes if any of its tags matches any name
	DateRange   *DateRange
	Source      string // substring of the url or title, case-insensitive
}

// Options configure matching and pagination.
type Options struct {
	Match         MatchMode
	CaseSensitive bool
	Limit         int // <= 0 means DefaultLimit
	Offset        int // < 0 means 0
}

// DefaultOptions returns token matching, case-insensitive, first page of 50.
func DefaultOptions() Options {
	return Options{
		Match: MatchTokens,
		Limit: DefaultLimit,
	}
}

func (o Options) normalized() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Result is one page of ranked items.
type Result struct {
	Items       []domain.SavedItem `json:"items"`
	Total       int                `json:"total"`
	HasMore     bool               `json:"has_more"`
	Suggestions []string           `json:"suggestions"`
}
