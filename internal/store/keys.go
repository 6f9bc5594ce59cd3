package store

import (
	"bytes"
	"sync"
)

// Key layout:
//
//	{table}:{key}                        -> value
//	idx:{table}:{index}:{value}\x00{key} -> key
//	rix:{table}:{key}                    -> JSON index map of the record (for replacing stale entries)
const (
	indexNamespace   = "idx:"
	reverseNamespace = "rix:"
	indexSeparator   = 0x00
)

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// Covers table (10) + index name (10) + timestamp value (30) + id (30) with room to spare.
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a data key using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildKey(table, key string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, table...)
	buf = append(buf, ':')
	buf = append(buf, key...)
	return buf
}

// buildReverseKey constructs the key holding a record's index map.
// Callers MUST call releaseKey when done with the key.
func buildReverseKey(table, key string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, reverseNamespace...)
	buf = append(buf, table...)
	buf = append(buf, ':')
	buf = append(buf, key...)
	return buf
}

// buildIndexKey constructs an index entry key.
// Callers MUST call releaseKey when done with the key.
func buildIndexKey(table, index, value, key string) []byte {
	buf := buildIndexValuePrefix(table, index, value)
	buf = append(buf, key...)
	return buf
}

// buildIndexValuePrefix returns the prefix shared by all entries of one index value.
// Callers MUST call releaseKey when done with the key.
func buildIndexValuePrefix(table, index, value string) []byte {
	buf := buildIndexPrefix(table, index)
	buf = append(buf, value...)
	buf = append(buf, indexSeparator)
	return buf
}

// buildIndexPrefix returns the prefix shared by every entry of an index.
// Callers MUST call releaseKey when done with the key.
func buildIndexPrefix(table, index string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, indexNamespace...)
	buf = append(buf, table...)
	buf = append(buf, ':')
	buf = append(buf, index...)
	buf = append(buf, ':')
	return buf
}

// indexValue extracts the indexed value from an index entry key.
func indexValue(key, indexPrefix []byte) (string, bool) {
	rest, ok := bytes.CutPrefix(key, indexPrefix)
	if !ok {
		return "", false
	}
	value, _, ok := bytes.Cut(rest, []byte{indexSeparator})
	if !ok {
		return "", false
	}
	return string(value), true
}

// releaseKey returns a key buffer to the pool for reuse.
// After calling this, the key slice must not be used.
func releaseKey(key []byte) {
	// Avoid keeping oversized buffers in the pool.
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
