package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/service"
)

func (s *Server) registerOfflineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listOfflineContents",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/offline/contents",
		Summary:     "List cached items",
		Description: "Returns the user's cached items, optionally only those not yet pushed to the remote",
		Tags:        []string{"Offline"},
	}, s.handleListOfflineContents)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addOfflineContent",
		Method:        http.MethodPost,
		Path:          "/api/v1/users/{userID}/offline/contents",
		Summary:       "Save an item offline",
		Description:   "Stores an item locally as offline-only. It is pushed on the next sync cycle.",
		Tags:          []string{"Offline"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddOfflineContent)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOfflineContent",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/contents/{itemID}",
		Summary:     "Get a cached item",
		Tags:        []string{"Offline"},
	}, s.handleGetOfflineContent)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOfflineTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/offline/tags",
		Summary:     "List cached tags",
		Tags:        []string{"Offline"},
	}, s.handleListOfflineTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearOfflineData",
		Method:      http.MethodDelete,
		Path:        "/api/v1/offline",
		Summary:     "Clear offline data",
		Description: "Wipes every cached item, tag and sync timestamp. Items not yet pushed are lost.",
		Tags:        []string{"Offline"},
	}, s.handleClearOfflineData)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOfflineStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/stats",
		Summary:     "Cache statistics",
		Tags:        []string{"Offline"},
	}, s.handleGetOfflineStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncMeta",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/meta",
		Summary:     "Last sync times",
		Description: "Returns when contents and tags were last cached from the remote; null if never",
		Tags:        []string{"Sync"},
	}, s.handleGetSyncMeta)
}

// === DTOs ===

// UserPathInput identifies the user in the path.
type UserPathInput struct {
	UserID string `path:"userID" minLength:"1" maxLength:"128" doc:"User ID"`
}

// ListOfflineContentsInput contains parameters for listing cached items.
type ListOfflineContentsInput struct {
	UserID      string `path:"userID" minLength:"1" maxLength:"128" doc:"User ID"`
	OfflineOnly bool   `query:"offline_only" doc:"Only items not yet pushed to the remote"`
}

// OfflineContentsResponse lists cached items.
type OfflineContentsResponse struct {
	Items []domain.OfflineRecord `json:"items" doc:"Cached items"`
	Total int                    `json:"total" doc:"Number of items"`
}

// OfflineContentsOutput wraps the list response for Huma.
type OfflineContentsOutput struct {
	Body OfflineContentsResponse
}

// AddOfflineContentInput contains the item to save offline.
type AddOfflineContentInput struct {
	UserID string `path:"userID" minLength:"1" maxLength:"128" doc:"User ID"`
	Body   service.NewContentInput
}

// OfflineContentOutput wraps a single cached item.
type OfflineContentOutput struct {
	Body domain.OfflineRecord
}

// GetOfflineContentInput identifies a cached item.
type GetOfflineContentInput struct {
	ItemID string `path:"itemID" minLength:"1" doc:"Item ID"`
}

// OfflineTagsResponse lists cached tags.
type OfflineTagsResponse struct {
	Tags []domain.OfflineTag `json:"tags" doc:"Cached tags"`
}

// OfflineTagsOutput wraps the tag list for Huma.
type OfflineTagsOutput struct {
	Body OfflineTagsResponse
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// OfflineStatsOutput wraps cache statistics for Huma.
type OfflineStatsOutput struct {
	Body offline.Stats
}

// SyncMetaOutput wraps the last sync times for Huma.
type SyncMetaOutput struct {
	Body service.SyncMeta
}

// === Handlers ===

func (s *Server) handleListOfflineContents(ctx context.Context, input *ListOfflineContentsInput) (*OfflineContentsOutput, error) {
	records, err := s.services.Offline.ListContents(ctx, input.UserID, input.OfflineOnly)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.OfflineRecord{}
	}
	return &OfflineContentsOutput{
		Body: OfflineContentsResponse{Items: records, Total: len(records)},
	}, nil
}

func (s *Server) handleAddOfflineContent(ctx context.Context, input *AddOfflineContentInput) (*OfflineContentOutput, error) {
	record, err := s.services.Offline.AddContent(ctx, input.UserID, input.Body)
	if err != nil {
		return nil, err
	}
	return &OfflineContentOutput{Body: *record}, nil
}

func (s *Server) handleGetOfflineContent(ctx context.Context, input *GetOfflineContentInput) (*OfflineContentOutput, error) {
	record, err := s.services.Offline.GetContent(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	return &OfflineContentOutput{Body: *record}, nil
}

func (s *Server) handleListOfflineTags(ctx context.Context, input *UserPathInput) (*OfflineTagsOutput, error) {
	tags, err := s.services.Offline.ListTags(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []domain.OfflineTag{}
	}
	return &OfflineTagsOutput{Body: OfflineTagsResponse{Tags: tags}}, nil
}

func (s *Server) handleClearOfflineData(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.services.Offline.Clear(ctx); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Offline data cleared"}}, nil
}

func (s *Server) handleGetOfflineStats(ctx context.Context, _ *struct{}) (*OfflineStatsOutput, error) {
	stats, err := s.services.Offline.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &OfflineStatsOutput{Body: stats}, nil
}

func (s *Server) handleGetSyncMeta(ctx context.Context, _ *struct{}) (*SyncMetaOutput, error) {
	meta, err := s.services.Offline.SyncMeta(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncMetaOutput{Body: *meta}, nil
}
