package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/id"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/sse"
	"github.com/keepstash/keepstash/internal/validation"
)

// NewContentInput describes an item the user saves while disconnected.
type NewContentInput struct {
	Title       string             `json:"title,omitempty" maxLength:"1000"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url,omitempty"`
	ContentType domain.ContentType `json:"content_type"`
	// ID is optional; one is generated when empty.
	ID   string   `json:"id,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// SyncMeta reports when the cache was last refreshed from the remote.
type SyncMeta struct {
	LastContentSync *time.Time `json:"last_content_sync"`
	LastTagSync     *time.Time `json:"last_tag_sync"`
}

// OfflineService exposes the offline cache to the HTTP API.
type OfflineService struct {
	cache     *offline.Cache
	validator *validation.Validator
	refresher ContentRefresher
	emitter   EventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewOfflineService creates a new offline service. refresher and emitter may be nil.
func NewOfflineService(
	cache *offline.Cache,
	v *validation.Validator,
	refresher ContentRefresher,
	emitter EventEmitter,
	logger *slog.Logger,
) *OfflineService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &OfflineService{
		cache:     cache,
		validator: v,
		refresher: refresher,
		emitter:   emitter,
		logger:    logger,
		now:       time.Now,
	}
}

// AddContent validates the input and stores it as an offline-only record of
// userID. The reconciler pushes it on the next cycle.
func (s *OfflineService) AddContent(ctx context.Context, userID string, in NewContentInput) (*domain.OfflineRecord, error) {
	item, err := s.buildItem(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(item); err != nil {
		return nil, err
	}

	if err := s.cache.AddOfflineContent(ctx, *item); err != nil {
		return nil, err
	}

	record, err := s.cache.GetOfflineContent(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("offline content added", "user_id", userID, "item_id", item.ID)
	s.emitter.Emit(sse.NewOfflineContentAddedEvent(userID, item.ID, item.Title))
	s.refresh(ctx, userID)
	return record, nil
}

func (s *OfflineService) buildItem(userID string, in NewContentInput) (*domain.SavedItem, error) {
	now := s.now()

	itemID := strings.TrimSpace(in.ID)
	if itemID == "" {
		generated, err := id.NewItemID()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "generate item id")
		}
		itemID = generated
	}

	item := &domain.SavedItem{
		ID:          itemID,
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		URL:         strings.TrimSpace(in.URL),
		ContentType: in.ContentType,
		CreatedAt:   now,
	}

	seen := make(map[string]struct{}, len(in.Tags))
	for _, name := range in.Tags {
		name = strings.TrimSpace(name)
		key := domain.TagKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		tagID, err := id.Generate(id.PrefixTag)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "generate tag id")
		}
		item.Tags = append(item.Tags, domain.Tag{
			ID:        tagID,
			UserID:    userID,
			Name:      name,
			Confirmed: true,
			CreatedAt: now,
		})
	}
	return item, nil
}

// GetContent returns one cached record.
func (s *OfflineService) GetContent(ctx context.Context, itemID string) (*domain.OfflineRecord, error) {
	return s.cache.GetOfflineContent(ctx, itemID)
}

// ListContents returns userID's cached records, or only those not yet pushed.
func (s *OfflineService) ListContents(ctx context.Context, userID string, offlineOnly bool) ([]domain.OfflineRecord, error) {
	if offlineOnly {
		return s.cache.GetOfflineOnlyContents(ctx, userID)
	}
	return s.cache.GetOfflineContents(ctx, userID)
}

// ListTags returns userID's cached tags.
func (s *OfflineService) ListTags(ctx context.Context, userID string) ([]domain.OfflineTag, error) {
	return s.cache.GetOfflineTags(ctx, userID)
}

// Clear wipes the offline cache and empties the working set.
func (s *OfflineService) Clear(ctx context.Context) error {
	if err := s.cache.ClearOfflineData(ctx); err != nil {
		return err
	}
	s.emitter.Emit(sse.NewOfflineClearedEvent())
	s.refresh(ctx, "")
	return nil
}

// SyncMeta returns the last content and tag sync times.
func (s *OfflineService) SyncMeta(ctx context.Context) (*SyncMeta, error) {
	content, err := s.cache.GetLastSyncTime(ctx, domain.SyncKindContent)
	if err != nil {
		return nil, err
	}
	tags, err := s.cache.GetLastSyncTime(ctx, domain.SyncKindTag)
	if err != nil {
		return nil, err
	}
	return &SyncMeta{LastContentSync: content, LastTagSync: tags}, nil
}

// Stats summarizes the cache.
func (s *OfflineService) Stats(ctx context.Context) (offline.Stats, error) {
	return s.cache.Stats(ctx)
}

// Available reports whether offline storage could be opened.
func (s *OfflineService) Available() bool {
	return s.cache.Available()
}

func (s *OfflineService) refresh(ctx context.Context, userID string) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.Refresh(ctx, userID); err != nil {
		s.logger.Warn("content refresh failed", "error", err)
	}
}
