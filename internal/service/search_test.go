package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/content"
	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/search"
)

func setupSearch(t *testing.T) (*SearchService, *offline.Cache) {
	t.Helper()
	cache := setupCache(t)
	ctx := t.Context()
	require.NoError(t, cache.CacheContent(ctx, []domain.SavedItem{
		savedItem("1", "u1", "React Hooks Guide", tag("t1", "react")),
		savedItem("2", "u1", "Vue basics", tag("t2", "vue")),
		savedItem("3", "u2", "React for someone else", tag("t1", "react")),
	}))
	return NewSearchService(cache, content.New(), logger.Discard()), cache
}

func TestSearchService_LoadAndSearch(t *testing.T) {
	svc, _ := setupSearch(t)

	assert.Empty(t, svc.ActiveUser())
	assert.Equal(t, 0, svc.Search("react", search.Filters{}, search.DefaultOptions()).Total)

	require.NoError(t, svc.Load(t.Context(), "u1"))
	assert.Equal(t, "u1", svc.ActiveUser())
	assert.Equal(t, 2, svc.Size())

	res := svc.Search("react", search.Filters{}, search.DefaultOptions())
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "1", res.Items[0].ID, "other users' items are not in the working set")
	assert.ElementsMatch(t, []string{"react", "vue"}, svc.TagNames())
}

func TestSearchService_RefreshOnlyActiveUser(t *testing.T) {
	svc, cache := setupSearch(t)
	ctx := t.Context()

	// Nothing loaded yet: refresh is a no-op.
	require.NoError(t, svc.Refresh(ctx, "u1"))
	assert.Empty(t, svc.ActiveUser())

	require.NoError(t, svc.Load(ctx, "u1"))
	require.NoError(t, cache.AddOfflineContent(ctx, savedItem("4", "u1", "Offline React notes")))
	require.NoError(t, cache.AddOfflineContent(ctx, savedItem("5", "u2", "Not mine")))

	require.NoError(t, svc.Refresh(ctx, "u2"))
	assert.Equal(t, 2, svc.Size(), "refresh for another user is ignored")

	require.NoError(t, svc.Refresh(ctx, "u1"))
	assert.Equal(t, 3, svc.Size())

	require.NoError(t, cache.AddOfflineContent(ctx, savedItem("6", "u1", "More")))
	require.NoError(t, svc.Refresh(ctx, ""))
	assert.Equal(t, 4, svc.Size(), "empty user refreshes the active one")
	assert.Equal(t, "u1", svc.ActiveUser())
}

func TestSearchService_SearchAsLoadsRequestedUser(t *testing.T) {
	svc, _ := setupSearch(t)

	res, err := svc.SearchAs(t.Context(), "u2", "react", search.Filters{}, search.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "3", res.Items[0].ID)
	assert.Equal(t, "u2", svc.ActiveUser())

	res, err = svc.SearchAs(t.Context(), "", "", search.Filters{}, search.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total, "empty user searches the active one")
}

func TestSearchService_SearchAsConcurrentUsers(t *testing.T) {
	svc, _ := setupSearch(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for _, userID := range []string{"u1", "u2", "u1", "u2"} {
		wg.Go(func() {
			for range 50 {
				res, err := svc.SearchAs(ctx, userID, "", search.Filters{}, search.DefaultOptions())
				if !assert.NoError(t, err) {
					return
				}
				assert.NotZero(t, res.Total)
				for _, it := range res.Items {
					assert.Equal(t, userID, it.UserID)
				}
			}
		})
	}
	wg.Wait()
}
