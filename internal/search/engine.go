// Package search ranks the in-memory working set against a free-text query.
//
// Matching is literal: "fuzzy" means every query token is a substring of the
// item's searchable text, not edit-distance matching. Search never fails; an
// unsatisfiable query or filter combination yields an empty page.
package search

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/keepstash/keepstash/internal/domain"
)

// Snapshotter exposes a consistent view of the working set.
// content.Store implements it.
type Snapshotter interface {
	View(fn func(items []domain.SavedItem))
}

// Engine runs searches over a Snapshotter.
type Engine struct {
	source Snapshotter
}

// NewEngine creates an Engine over source.
func NewEngine(source Snapshotter) *Engine {
	return &Engine{source: source}
}

type scored struct {
	item  domain.SavedItem
	score int
}

// Search filters, scores, sorts and paginates the working set.
// The whole search runs against one snapshot.
func (e *Engine) Search(query string, filters Filters, opts Options) Result {
	opts = opts.normalized()
	term := strings.TrimSpace(query)

	var (
		matched     []scored
		suggestions []string
	)
	e.source.View(func(items []domain.SavedItem) {
		m := newMatcher(term, opts)
		scorer := newScorer(term)
		for i := range items {
			item := &items[i]
			if !m.match(item) || !filters.match(item) {
				continue
			}
			s := scored{item: item.Clone()}
			if scorer != nil {
				s.score = scorer.score(item)
			}
			matched = append(matched, s)
		}

		if term != "" {
			// Ties keep filtered order.
			slices.SortStableFunc(matched, func(a, b scored) int {
				return b.score - a.score
			})
		}

		if pageLen(len(matched), opts) == 0 && term != "" {
			suggestions = suggest(items, term)
		}
	})

	total := len(matched)
	page := make([]domain.SavedItem, 0, pageLen(total, opts))
	if opts.Offset < total {
		end := min(opts.Offset+opts.Limit, total)
		for _, s := range matched[opts.Offset:end] {
			page = append(page, s.item)
		}
	}

	if suggestions == nil {
		suggestions = []string{}
	}
	return Result{
		Items:       page,
		Total:       total,
		HasMore:     opts.Offset+opts.Limit < total,
		Suggestions: suggestions,
	}
}

func pageLen(total int, opts Options) int {
	if opts.Offset >= total {
		return 0
	}
	return min(opts.Limit, total-opts.Offset)
}

// matcher implements text filtering.
type matcher struct {
	mode          MatchMode
	caseSensitive bool
	query         string
	tokens        []string
}

func newMatcher(term string, opts Options) *matcher {
	if term == "" {
		return &matcher{}
	}
	if !opts.CaseSensitive {
		term = strings.ToLower(term)
	}
	return &matcher{
		mode:          opts.Match,
		caseSensitive: opts.CaseSensitive,
		query:         term,
		tokens:        strings.Fields(term),
	}
}

func (m *matcher) match(item *domain.SavedItem) bool {
	if m.query == "" {
		return true
	}
	text := item.SearchableText()
	if !m.caseSensitive {
		text = strings.ToLower(text)
	}

	if m.mode == MatchTokens {
		for _, tok := range m.tokens {
			if !strings.Contains(text, tok) {
				return false
			}
		}
		return true
	}
	// MatchExact and MatchSubstring both require the whole query.
	return strings.Contains(text, m.query)
}

func (f *Filters) match(item *domain.SavedItem) bool {
	if f.ContentType != "" && item.ContentType != f.ContentType {
		return false
	}
	if len(f.TagNames) > 0 && !slices.ContainsFunc(f.TagNames, item.HasTag) {
		return false
	}
	if f.DateRange != nil && !f.DateRange.Contains(item.CreatedAt) {
		return false
	}
	if f.Source != "" {
		source := strings.ToLower(f.Source)
		if !strings.Contains(strings.ToLower(item.URL), source) &&
			!strings.Contains(strings.ToLower(item.Title), source) {
			return false
		}
	}
	return true
}

// scorer computes additive relevance for one query term, case-insensitively.
type scorer struct {
	term string         // lower-cased
	tag  string         // term folded with domain.TagKey
	re   *regexp.Regexp // nil when term cannot be compiled; descriptions then score 0
}

func newScorer(term string) *scorer {
	if term == "" {
		return nil
	}
	// regexp rejects invalid UTF-8; it reads such bytes in the text as U+FFFD.
	term = strings.ToValidUTF8(term, string(utf8.RuneError))
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
	if err != nil {
		re = nil
	}
	return &scorer{
		term: strings.ToLower(term),
		tag:  domain.TagKey(term),
		re:   re,
	}
}

// Score weights.
const (
	scoreTitleContains = 10
	scoreTitlePrefix   = 5
	scoreTagContains   = 5
	scoreTagExact      = 3
	scoreDescription   = 1
)

func (s *scorer) score(item *domain.SavedItem) int {
	total := 0

	title := strings.ToLower(item.Title)
	if strings.Contains(title, s.term) {
		total += scoreTitleContains
		if strings.HasPrefix(title, s.term) {
			total += scoreTitlePrefix
		}
	}

	for _, t := range item.Tags {
		key := t.Key()
		if strings.Contains(key, s.tag) {
			total += scoreTagContains
			if key == s.tag {
				total += scoreTagExact
			}
		}
	}

	if item.Description != "" && s.re != nil {
		total += scoreDescription * len(s.re.FindAllStringIndex(item.Description, -1))
	}
	return total
}

// Score returns the relevance of item for query, as used to order results.
func Score(item domain.SavedItem, query string) int {
	s := newScorer(strings.TrimSpace(query))
	if s == nil {
		return 0
	}
	return s.score(&item)
}

// suggest returns up to maxSuggestions distinct tag names whose key contains
// the key of the query's first token.
func suggest(items []domain.SavedItem, query string) []string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}
	token := domain.TagKey(fields[0])

	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		for _, t := range item.Tags {
			key := t.Key()
			if !strings.Contains(key, token) {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t.Name)
			if len(out) == maxSuggestions {
				return out
			}
		}
	}
	return out
}
