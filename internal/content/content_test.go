package content

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
)

func item(id, title string, tags ...string) domain.SavedItem {
	it := domain.SavedItem{ID: id, UserID: "u1", Title: title, ContentType: domain.ContentTypeArticle}
	for _, name := range tags {
		it.Tags = append(it.Tags, domain.Tag{ID: "t-" + name, Name: name})
	}
	return it
}

func TestStore_SetContentReplaces(t *testing.T) {
	s := New()
	s.SetContent([]domain.SavedItem{item("a", "A"), item("b", "B")})
	s.SetContent([]domain.SavedItem{item("c", "C")})

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)

	got, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "C", got.Title)
}

func TestStore_DuplicateIDs(t *testing.T) {
	s := New()
	s.SetContent([]domain.SavedItem{item("a", "first"), item("b", "B"), item("a", "last")})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "last", items[0].Title)
	assert.Equal(t, "b", items[1].ID)
}

func TestStore_ItemsAreCopies(t *testing.T) {
	s := New()
	src := []domain.SavedItem{item("a", "A", "go")}
	s.SetContent(src)

	src[0].Tags[0].Name = "mutated"
	items := s.Items()
	items[0].Title = "changed"

	got, _ := s.Get("a")
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "go", got.Tags[0].Name)
}

func TestStore_AllTagNames(t *testing.T) {
	s := New()
	s.SetContent([]domain.SavedItem{
		item("a", "A", "React", "perf"),
		item("b", "B", "react", "food"),
	})

	assert.Equal(t, []string{"React", "perf", "food"}, s.AllTagNames())
}

func TestStore_ZeroValue(t *testing.T) {
	var s Store
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("x")
	assert.False(t, ok)
	s.View(func(items []domain.SavedItem) { assert.Empty(t, items) })
}

func TestStore_ConcurrentSetAndView(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			if i%2 == 0 {
				s.SetContent([]domain.SavedItem{item("a", "A"), item("b", "B")})
				return
			}
			s.View(func(items []domain.SavedItem) {
				assert.Contains(t, []int{0, 2}, len(items))
			})
		})
	}
	wg.Wait()
}
