package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
)

var _ Source = (*LoggingSource)(nil)

// LoggingSource wraps a Source and logs every call.
type LoggingSource struct {
	source Source
	logger *slog.Logger
}

// NewLoggingSource returns a Source that logs calls to source.
func NewLoggingSource(source Source, logger *slog.Logger) *LoggingSource {
	return &LoggingSource{source: source, logger: logger}
}

// FetchAll logs the user, item count, duration and error.
func (s *LoggingSource) FetchAll(ctx context.Context, userID string) (items []domain.SavedItem, err error) {
	defer func(begin time.Time) {
		s.logger.Info("remote fetch",
			"user_id", userID,
			"count", len(items),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())

	return s.source.FetchAll(ctx, userID)
}

// Push logs the item id, duration and error.
func (s *LoggingSource) Push(ctx context.Context, item domain.SavedItem) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("remote push",
			"item_id", item.ID,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())

	return s.source.Push(ctx, item)
}
