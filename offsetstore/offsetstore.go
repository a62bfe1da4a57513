// Package offsetstore defines OffsetStore (spec.md §3, §4.5, §6): the
// durable map of (group, topic, kafkaPartition) to the two monotonic
// offset counters, committed and lastSeen.
package offsetstore

import "context"

// Key identifies one partition's offset state.
type Key struct {
	Group          string
	Topic          string
	KafkaPartition int32
}

// OffsetStore is safe for concurrent use across partitions; per spec.md
// §5, the write for one partition is strictly serialized behind that
// partition's upload completion, but distinct partitions may write
// concurrently.
type OffsetStore interface {
	// GetCommitted returns the committed offset — one past the highest
	// offset whose record has been durably uploaded, i.e. the offset
	// consumption resumes from — and false if no offset has ever been committed
	// for this key (the ConsumerLoop should seek to the topic's earliest
	// available offset in that case).
	GetCommitted(ctx context.Context, key Key) (offset int64, ok bool, err error)

	// CommitOffset advances committed to offset. Callers must only call
	// this after every upload for the batch being committed has
	// succeeded (spec.md §4.5 step 4, the linearization point). Backends
	// must reject (or no-op) an offset lower than the currently stored
	// value — committed only ever increases.
	CommitOffset(ctx context.Context, key Key, offset int64) error

	// SetLastSeen records the highest offset the consumer loop has
	// observed, for lag metrics. Never used to decide commit safety.
	SetLastSeen(ctx context.Context, key Key, offset int64) error

	// GetLastSeen returns the last-seen offset recorded via SetLastSeen.
	GetLastSeen(ctx context.Context, key Key) (offset int64, ok bool, err error)
}
