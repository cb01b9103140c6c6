// Package store holds the remote record backends a tracking loop publishes to.
package store

import "schoolbus-backend/internal/tracking"

var (
	_ tracking.RecordStore = (*FirebaseStore)(nil)
	_ tracking.RecordStore = (*RedisStore)(nil)
	_ tracking.RecordStore = (*MemoryStore)(nil)
)
