// Package sse implements Server-Sent Events so the UI can follow sync cycles
// and connectivity changes without polling.
package sse

import (
	"time"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventSyncState is emitted whenever a user's reconciliation cycle changes phase.
	EventSyncState EventType = "sync.state"
	// EventSyncCompleted is emitted when a cycle finished, including partial push failures.
	EventSyncCompleted EventType = "sync.completed"
	// EventSyncFailed is emitted when a cycle aborted, e.g. the fetch failed.
	EventSyncFailed EventType = "sync.failed"

	// EventConnectivityChanged is emitted on every online/offline transition.
	EventConnectivityChanged EventType = "connectivity.changed"

	// EventOfflineContentAdded is emitted when an item was saved while disconnected.
	EventOfflineContentAdded EventType = "offline.content_added"
	// EventOfflineCleared is emitted after the offline cache was wiped.
	EventOfflineCleared EventType = "offline.cleared"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to clients of that user. Empty means everyone.
	UserID string `json:"-"`
}

// SyncStateEventData is the data payload for sync.state events.
type SyncStateEventData struct {
	UserID  string `json:"user_id"`
	CycleID string `json:"cycle_id"`
	State   string `json:"state"`
}

// SyncCompletedEventData is the data payload for sync.completed events.
type SyncCompletedEventData struct {
	UserID     string   `json:"user_id"`
	CycleID    string   `json:"cycle_id"`
	Failed     []string `json:"failed"`
	Fetched    int      `json:"fetched"`
	Pushed     int      `json:"pushed"`
	DurationMS int64    `json:"duration_ms"`
}

// SyncFailedEventData is the data payload for sync.failed events.
type SyncFailedEventData struct {
	UserID  string `json:"user_id"`
	CycleID string `json:"cycle_id"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// ConnectivityEventData is the data payload for connectivity.changed events.
type ConnectivityEventData struct {
	Online bool `json:"online"`
}

// OfflineContentEventData is the data payload for offline.content_added events.
type OfflineContentEventData struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewSyncStateEvent creates a sync.state event for userID.
func NewSyncStateEvent(userID, cycleID, state string) Event {
	return Event{
		Type:      EventSyncState,
		Data:      SyncStateEventData{UserID: userID, CycleID: cycleID, State: state},
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewSyncCompletedEvent creates a sync.completed event.
func NewSyncCompletedEvent(data SyncCompletedEventData) Event {
	if data.Failed == nil {
		data.Failed = []string{}
	}
	return Event{
		Type:      EventSyncCompleted,
		Data:      data,
		UserID:    data.UserID,
		Timestamp: time.Now(),
	}
}

// NewSyncFailedEvent creates a sync.failed event.
func NewSyncFailedEvent(data SyncFailedEventData) Event {
	return Event{
		Type:      EventSyncFailed,
		Data:      data,
		UserID:    data.UserID,
		Timestamp: time.Now(),
	}
}

// NewConnectivityEvent creates a connectivity.changed event, broadcast to all clients.
func NewConnectivityEvent(online bool) Event {
	return Event{
		Type:      EventConnectivityChanged,
		Data:      ConnectivityEventData{Online: online},
		Timestamp: time.Now(),
	}
}

// NewOfflineContentAddedEvent creates an offline.content_added event.
func NewOfflineContentAddedEvent(userID, itemID, title string) Event {
	return Event{
		Type:      EventOfflineContentAdded,
		Data:      OfflineContentEventData{ItemID: itemID, Title: title},
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewOfflineClearedEvent creates an offline.cleared event.
func NewOfflineClearedEvent() Event {
	return Event{
		Type:      EventOfflineCleared,
		Data:      struct{}{},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
