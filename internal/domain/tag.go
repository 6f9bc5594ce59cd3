package domain

import (
	"time"

	"golang.org/x/text/cases"
)

// Tag is a named label attached to saved items.
// Auto-generated tags start unconfirmed until the user accepts them.
// Name is unique per owner and is the case-insensitive join key for search and filtering.
type Tag struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id" validate:"required,max=128"`
	UserID        string    `json:"user_id,omitempty"`
	Name          string    `json:"name" validate:"required,max=100"`
	AutoGenerated bool      `json:"auto_generated"`
	Confirmed     bool      `json:"confirmed"`
}

// Key returns the tag's join key.
func (t *Tag) Key() string {
	return TagKey(t.Name)
}

// IsPending reports whether the tag was generated automatically and not yet confirmed.
func (t *Tag) IsPending() bool {
	return t.AutoGenerated && !t.Confirmed
}

// TagKey folds a tag name into its case-insensitive join key.
// "React" and "REACT" share the key "react".
func TagKey(name string) string {
	// cases.Caser is stateful and not safe for concurrent use, so build one per call.
	return cases.Fold().String(name)
}

// UniqueTags returns the tags of items de-duplicated by tag ID, in first-seen order.
func UniqueTags(items []SavedItem) []Tag {
	seen := make(map[string]struct{})
	var tags []Tag
	for _, item := range items {
		for _, t := range item.Tags {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			if t.UserID == "" {
				t.UserID = item.UserID
			}
			tags = append(tags, t)
		}
	}
	return tags
}
