package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/logger"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.EventChan:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case evt := <-c.EventChan:
		t.Fatalf("unexpected event %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Discard(), WithHeartbeatInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func TestManager_FiltersByUser(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	bob, err := m.Connect("bob")
	require.NoError(t, err)
	all, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, 3, m.ClientCount())
	assert.True(t, strings.HasPrefix(alice.ID, "client-"))

	m.Emit(NewSyncStateEvent("alice", "c1", "fetching"))

	evt := receive(t, alice)
	assert.Equal(t, EventSyncState, evt.Type)
	assert.Equal(t, SyncStateEventData{UserID: "alice", CycleID: "c1", State: "fetching"}, evt.Data)
	assert.Equal(t, EventSyncState, receive(t, all).Type)
	assertNothing(t, bob)

	m.Emit(NewConnectivityEvent(true))
	assert.Equal(t, EventConnectivityChanged, receive(t, alice).Type)
	assert.Equal(t, EventConnectivityChanged, receive(t, bob).Type)
	assert.Equal(t, EventConnectivityChanged, receive(t, all).Type)
}

func TestManager_IgnoresForeignValues(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect("")
	require.NoError(t, err)

	m.Emit("not an event")
	assertNothing(t, c)
}

func TestManager_Disconnect(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect("u1")
	require.NoError(t, err)

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)

	assert.Equal(t, 0, m.ClientCount())
	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m := NewManager(logger.Discard())
	go m.Start(context.Background())

	c, err := m.Connect("u1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx), "second shutdown is a no-op")

	select {
	case <-c.Done:
	case <-time.After(time.Second):
		t.Fatal("client not closed on shutdown")
	}
	assert.Equal(t, 0, m.ClientCount())

	// Emitting after shutdown must not panic.
	m.Emit(NewOfflineClearedEvent())
}

func TestNewSyncCompletedEvent_NonNilFailed(t *testing.T) {
	evt := NewSyncCompletedEvent(SyncCompletedEventData{UserID: "u1", CycleID: "c1"})

	data, ok := evt.Data.(SyncCompletedEventData)
	require.True(t, ok)
	assert.NotNil(t, data.Failed)
	assert.Equal(t, "u1", evt.UserID)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, logger.Discard()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?user_id=u1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}

	assert.Equal(t, "event: connected", next())
	assert.Contains(t, next(), `"client_id":"client-`)
	assert.Empty(t, next())

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	m.Emit(NewSyncStateEvent("u1", "c9", "pushing"))

	assert.Equal(t, "event: sync.state", next())
	data := next()
	assert.Contains(t, data, `"type":"sync.state"`)
	assert.Contains(t, data, `"state":"pushing"`)
	assert.NotContains(t, data, "UserID")
}

func TestHandler_RejectsNonGet(t *testing.T) {
	m := NewManager(logger.Discard())
	rec := httptest.NewRecorder()

	NewHandler(m, logger.Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
