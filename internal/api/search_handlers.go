package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/keepstash/keepstash/internal/domain"
	domainerrors "github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search saved items",
		Description: "Ranks the loaded working set against the query. Passing user_id loads that user's cached items first.",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching the working set.
type SearchInput struct {
	Query         string `query:"q" maxLength:"500" doc:"Search query; empty matches everything"`
	UserID        string `query:"user_id" maxLength:"128" doc:"Switch the working set to this user's cached items"`
	Type          string `query:"type" doc:"Content type filter (article, video, document, bookmark, note, image, audio, link)"`
	Tags          string `query:"tags" doc:"Comma-separated tag names; an item passes if it has any of them"`
	From          string `query:"from" doc:"Created at or after (RFC3339)"`
	To            string `query:"to" doc:"Created at or before (RFC3339)"`
	Source        string `query:"source" doc:"Substring of the url or title"`
	Match         string `query:"match" doc:"tokens (default), substring or exact"`
	CaseSensitive bool   `query:"case_sensitive" doc:"Case-sensitive text matching"`
	Limit         int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	Offset        int    `query:"offset" minimum:"0" doc:"Items to skip"`
}

// SearchResponse is one ranked page.
type SearchResponse struct {
	Query       string             `json:"query" doc:"Original search query"`
	Items       []domain.SavedItem `json:"items" doc:"Page of items by descending relevance"`
	Total       int                `json:"total" doc:"Matches before pagination"`
	HasMore     bool               `json:"has_more" doc:"Whether more pages exist"`
	Suggestions []string           `json:"suggestions" doc:"Tag names to try when nothing matched"`
	TookMs      int64              `json:"took_ms" doc:"Search duration in milliseconds"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	filters, opts, err := input.toSearch()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.services.Search.SearchAs(ctx, input.UserID, input.Query, filters, opts)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{
		Body: SearchResponse{
			Query:       input.Query,
			Items:       res.Items,
			Total:       res.Total,
			HasMore:     res.HasMore,
			Suggestions: res.Suggestions,
			TookMs:      time.Since(start).Milliseconds(),
		},
	}, nil
}

// toSearch converts query parameters into engine filters and options.
func (in *SearchInput) toSearch() (search.Filters, search.Options, error) {
	details := make(map[string]string)

	filters := search.Filters{
		ContentType: domain.ContentType(strings.ToLower(strings.TrimSpace(in.Type))),
		TagNames:    splitCSV(in.Tags),
		Source:      strings.TrimSpace(in.Source),
	}
	if filters.ContentType != "" && !filters.ContentType.IsValid() {
		details["type"] = "unknown content type"
	}

	from, fromErr := parseTime(in.From)
	if fromErr != nil {
		details["from"] = "must be an RFC3339 timestamp"
	}
	to, toErr := parseTime(in.To)
	if toErr != nil {
		details["to"] = "must be an RFC3339 timestamp"
	}
	if !from.IsZero() || !to.IsZero() {
		filters.DateRange = &search.DateRange{Start: from, End: to}
	}

	mode, err := search.ParseMatchMode(in.Match)
	if err != nil {
		details["match"] = "must be tokens, substring or exact"
	}

	if len(details) > 0 {
		return search.Filters{}, search.Options{}, domainerrors.ValidationWithDetails("invalid search parameters", details)
	}

	return filters, search.Options{
		Match:         mode,
		CaseSensitive: in.CaseSensitive,
		Limit:         in.Limit,
		Offset:        in.Offset,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func splitCSV(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
