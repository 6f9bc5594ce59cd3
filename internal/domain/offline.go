package domain

import "time"

// SyncKind selects which last-sync timestamp to read from the offline cache.
type SyncKind string

const (
	// SyncKindContent is the last time saved items were cached from the remote.
	SyncKindContent SyncKind = "content"
	// SyncKindTag is the last time tags were cached from the remote.
	SyncKindTag SyncKind = "tag"
)

// IsValid reports whether k names a known sync kind.
func (k SyncKind) IsValid() bool {
	return k == SyncKindContent || k == SyncKindTag
}

// OfflineRecord is a SavedItem as stored in the offline cache, annotated with sync bookkeeping.
//
// IsOfflineOnly marks records created locally that have not been pushed to the remote yet.
// Only the reconciler clears it.
type OfflineRecord struct {
	SavedItem
	LastSyncedAt  time.Time `json:"last_synced_at"`
	IsOfflineOnly bool      `json:"is_offline_only"`
}

// NewOfflineRecord wraps item for storage at the given sync time.
func NewOfflineRecord(item SavedItem, syncedAt time.Time, offlineOnly bool) OfflineRecord {
	return OfflineRecord{
		SavedItem:     item.Clone(),
		LastSyncedAt:  syncedAt,
		IsOfflineOnly: offlineOnly,
	}
}

// MarkSynced clears the offline-only flag and bumps LastSyncedAt.
func (r *OfflineRecord) MarkSynced(at time.Time) {
	r.IsOfflineOnly = false
	r.LastSyncedAt = at
}

// OfflineTag is a Tag as stored in the offline cache.
type OfflineTag struct {
	Tag
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Items unwraps a slice of records into their saved items.
func Items(records []OfflineRecord) []SavedItem {
	items := make([]SavedItem, len(records))
	for i := range records {
		items[i] = records[i].SavedItem
	}
	return items
}
