// Package domain contains the core entities shared by the KeepStash content cache, search engine and reconciler.
package domain

import (
	"strings"
	"time"
)

// ContentType classifies a saved item.
type ContentType string

const (
	// ContentTypeArticle is a long-form web article.
	ContentTypeArticle ContentType = "article"
	// ContentTypeVideo is a video link.
	ContentTypeVideo ContentType = "video"
	// ContentTypeDocument is an uploaded or linked document.
	ContentTypeDocument ContentType = "document"
	// ContentTypeBookmark is a plain bookmark.
	ContentTypeBookmark ContentType = "bookmark"
	// ContentTypeNote is a user-written note.
	ContentTypeNote ContentType = "note"
	// ContentTypeImage is an image.
	ContentTypeImage ContentType = "image"
	// ContentTypeAudio is a podcast episode or other audio.
	ContentTypeAudio ContentType = "audio"
	// ContentTypeLink is a generic link that was not classified further.
	ContentTypeLink ContentType = "link"
)

// ContentTypes lists every known content type in display order.
var ContentTypes = []ContentType{
	ContentTypeArticle,
	ContentTypeVideo,
	ContentTypeDocument,
	ContentTypeBookmark,
	ContentTypeNote,
	ContentTypeImage,
	ContentTypeAudio,
	ContentTypeLink,
}

// IsValid reports whether c is one of the known content types.
func (c ContentType) IsValid() bool {
	for _, known := range ContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// SavedItem is a piece of content a user saved: an article, a document, a bookmark and so on.
type SavedItem struct {
	CreatedAt   time.Time   `json:"created_at"`
	ID          string      `json:"id" validate:"required,max=128"`
	UserID      string      `json:"user_id" validate:"required,max=128"`
	Title       string      `json:"title,omitempty" validate:"max=1000"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty" validate:"omitempty,url"`
	ContentType ContentType `json:"content_type" validate:"required,content_type"`
	Tags        []Tag       `json:"tags,omitempty" validate:"dive"`
}

// TagNames returns the names of the item's tags in display order.
func (s *SavedItem) TagNames() []string {
	names := make([]string, len(s.Tags))
	for i, t := range s.Tags {
		names[i] = t.Name
	}
	return names
}

// SearchableText is the text the search engine matches queries against:
// title, description, space-joined tag names and url.
func (s *SavedItem) SearchableText() string {
	var b strings.Builder
	b.Grow(len(s.Title) + len(s.Description) + len(s.URL) + 16*len(s.Tags))
	b.WriteString(s.Title)
	b.WriteByte(' ')
	b.WriteString(s.Description)
	b.WriteByte(' ')
	b.WriteString(strings.Join(s.TagNames(), " "))
	b.WriteByte(' ')
	b.WriteString(s.URL)
	return b.String()
}

// HasTag reports whether any of the item's tags matches name case-insensitively.
func (s *SavedItem) HasTag(name string) bool {
	key := TagKey(name)
	for _, t := range s.Tags {
		if t.Key() == key {
			return true
		}
	}
	return false
}

// Clone returns a copy of the item that shares no slices with the original.
func (s SavedItem) Clone() SavedItem {
	if s.Tags != nil {
		tags := make([]Tag, len(s.Tags))
		copy(tags, s.Tags)
		s.Tags = tags
	}
	return s
}
