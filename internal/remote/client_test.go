package remote_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/remote"
)

func TestClient_FetchAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/users/u1/contents", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","title":"React Performance Guide","content_type":"article","tags":[{"id":"t1","name":"react"}]},
			{"id":"b","user_id":"u1","title":"Cooking Basics","content_type":"note"}
		]`))
	}))
	defer server.Close()

	c := remote.NewClient(server.URL, remote.WithAPIKey("secret"))
	items, err := c.FetchAll(t.Context(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "React Performance Guide", items[0].Title)
	assert.Equal(t, "u1", items[0].UserID, "owner filled from the request")
	assert.Equal(t, "react", items[0].Tags[0].Name)
	assert.Equal(t, domain.ContentTypeNote, items[1].ContentType)
}

func TestClient_Push(t *testing.T) {
	t.Parallel()

	var got domain.SavedItem
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/v1/contents/item-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := remote.NewClient(server.URL)
	item := domain.SavedItem{ID: "item-1", UserID: "u1", Title: "Offline note", ContentType: domain.ContentTypeNote}
	require.NoError(t, c.Push(t.Context(), item))
	assert.Equal(t, "Offline note", got.Title)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, errors.ErrUnauthorized},
		{"server error", http.StatusBadGateway, errors.ErrNetwork},
		{"rate limited", http.StatusTooManyRequests, errors.ErrNetwork},
		{"not found", http.StatusNotFound, errors.ErrNotFound},
		{"bad request", http.StatusBadRequest, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := remote.NewClient(server.URL).FetchAll(t.Context(), "u1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := remote.NewClient(url).Push(t.Context(), domain.SavedItem{ID: "x"})
	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := remote.NewClient(server.URL, remote.WithTimeout(20*time.Millisecond))
	_, err := c.FetchAll(t.Context(), "u1")
	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	assert.NoError(t, remote.NewClient(server.URL).Ping(t.Context()))
}

func TestClient_PathEscaping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users/a%2Fb/contents", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	items, err := remote.NewClient(server.URL).FetchAll(t.Context(), "a/b")
	require.NoError(t, err)
	assert.Empty(t, items)
}
