// Package commitpolicy implements CommitPolicy (spec.md §4.5): deciding
// when a Kafka partition's in-flight data must be flushed and uploaded.
// Generalized from the teacher's single-file rotation decision
// (core/components/rotateConfig.go + batchedWriterAssembly.go's
// NeedsRotate) to "flush a partition's whole open entry set".
package commitpolicy

import (
	"time"

	"github.com/trivago/secorgo/registry"
)

// AgePolicy selects which entry's age counts toward the max-age trigger
// when a partition has multiple open entries (spec.md §4.5).
type AgePolicy string

const (
	// AgeOldest flushes once the oldest open entry exceeds MaxFileAge.
	AgeOldest AgePolicy = "oldest"
	// AgeNewest flushes once the most recently created entry exceeds
	// MaxFileAge — i.e. every open entry has existed for at least
	// MaxFileAge. Write activity (LastWriteAt) is not considered.
	AgeNewest AgePolicy = "newest"
)

// Config mirrors the secor.max.file.* keys (spec.md §6).
type Config struct {
	MaxFileSizeBytes int64
	MaxFileAge       time.Duration
	MaxFileRecords   int64
	AgePolicy        AgePolicy
}

// Policy evaluates Config's triggers against a partition's currently open
// entries.
type Policy struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Policy {
	return &Policy{cfg: cfg, now: time.Now}
}

// ShouldFlush reports whether any of the size/age/count triggers have
// tripped for this set of open entries (spec.md §4.5's "any of" list,
// excluding the explicit-flush trigger which callers check separately —
// shutdown/rebalance revocation bypasses this evaluation entirely).
func (p *Policy) ShouldFlush(entries []*registry.Entry) bool {
	if len(entries) == 0 {
		return false
	}

	now := p.now()
	var oldest, newest time.Time

	for i, e := range entries {
		if p.cfg.MaxFileSizeBytes > 0 && e.BytesWritten >= p.cfg.MaxFileSizeBytes {
			return true
		}
		if p.cfg.MaxFileRecords > 0 && e.RecordCount >= p.cfg.MaxFileRecords {
			return true
		}
		if i == 0 || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
		if i == 0 || e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}

	if p.cfg.MaxFileAge <= 0 {
		return false
	}
	switch p.cfg.AgePolicy {
	case AgeNewest:
		return now.Sub(newest) >= p.cfg.MaxFileAge
	default: // AgeOldest
		return now.Sub(oldest) >= p.cfg.MaxFileAge
	}
}
