package validation_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/validation"
)

func validItem() domain.SavedItem {
	return domain.SavedItem{
		ID:          "item-1",
		UserID:      "u1",
		Title:       "React Performance Guide",
		URL:         "https://react.dev/learn",
		ContentType: domain.ContentTypeArticle,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tags:        []domain.Tag{{ID: "t1", Name: "react"}},
	}
}

func TestValidator_ValidItem(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validItem()))
}

func TestValidator_ItemErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		mutate    func(*domain.SavedItem)
		wantField string
		wantMsg   string
	}{
		{"missing id", func(s *domain.SavedItem) { s.ID = "" }, "id", "is required"},
		{"missing user", func(s *domain.SavedItem) { s.UserID = "" }, "user_id", "is required"},
		{"bad url", func(s *domain.SavedItem) { s.URL = "not a url" }, "url", "must be a valid URL"},
		{"unknown content type", func(s *domain.SavedItem) { s.ContentType = "podcast" }, "content_type", "must be one of: article"},
		{"tag without name", func(s *domain.SavedItem) { s.Tags[0].Name = "" }, "tags[0].name", "is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			item.Tags = append([]domain.Tag(nil), item.Tags...)
			tt.mutate(&item)

			err := v.Validate(item)
			require.Error(t, err)

			var domainErr *errors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.True(t, errors.Is(err, errors.ErrValidation))

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details[tt.wantField], tt.wantMsg)
		})
	}
}

func TestValidator_EmptyURLAllowed(t *testing.T) {
	v := validation.New()

	item := validItem()
	item.URL = ""
	assert.NoError(t, v.Validate(item))
}
