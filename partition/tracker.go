// Package partition implements PartitionTracker (spec.md §4.6): the
// per-Kafka-partition state machine and the write lock that keeps the
// Uploader's snapshot-and-close step from racing a concurrent
// ConsumerLoop append.
package partition

import (
	"sync"
	"time"

	"github.com/trivago/secorgo/secerrors"
)

// State is one node of the state machine spec.md §4.6 draws:
//
//	IDLE        --start-->       CONSUMING
//	CONSUMING   --policyTrip-->  FLUSHING
//	FLUSHING    --ok-->          CONSUMING
//	FLUSHING    --fatal-->       FAILED
//	any         --revoke-->      FLUSHING --ok--> IDLE
type State int

const (
	StateIdle State = iota
	StateConsuming
	StateFlushing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConsuming:
		return "CONSUMING"
	case StateFlushing:
		return "FLUSHING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Tracker owns one (topic, kafkaPartition)'s working set bookkeeping and
// write lock. ConsumerLoop holds writeLock (RLock) only for the instant
// of an append; Uploader holds it (Lock) only for the instant of
// snapshot+close, never across the actual network upload — spec.md §5
// forbids holding a lock across a blocking point another loop needs.
type Tracker struct {
	Topic          string
	KafkaPartition int32

	writeLock sync.RWMutex

	mu                   sync.Mutex
	state                State
	earliestUncommitted  int64
	firstWriteAt         time.Time
	lastWriteAt          time.Time
}

func New(topic string, kafkaPartition int32) *Tracker {
	return &Tracker{Topic: topic, KafkaPartition: kafkaPartition, state: StateIdle}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// transition validates and applies a state change, rejecting any edge not
// drawn in spec.md §4.6's diagram.
func (t *Tracker) transition(allowed []State, next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range allowed {
		if t.state == s {
			t.state = next
			return nil
		}
	}
	return secerrors.NewInvariantViolation("illegal transition from %s to %s", t.state, next)
}

// Start moves IDLE -> CONSUMING.
func (t *Tracker) Start() error {
	return t.transition([]State{StateIdle}, StateConsuming)
}

// BeginFlush moves CONSUMING (or IDLE, for revoke) -> FLUSHING. A tracker
// already FLUSHING or FAILED is rejected with an InvariantViolation.
func (t *Tracker) BeginFlush() error {
	return t.transition([]State{StateConsuming, StateIdle}, StateFlushing)
}

// FlushSucceeded moves FLUSHING -> CONSUMING.
func (t *Tracker) FlushSucceeded() error {
	return t.transition([]State{StateFlushing}, StateConsuming)
}

// FlushSucceededToIdle moves FLUSHING -> IDLE (the revoke path).
func (t *Tracker) FlushSucceededToIdle() error {
	return t.transition([]State{StateFlushing}, StateIdle)
}

// FlushFailed moves FLUSHING -> FAILED. This is terminal: the supervisor
// restarts the partition loop from the last committed offset.
func (t *Tracker) FlushFailed() error {
	return t.transition([]State{StateFlushing}, StateFailed)
}

// MarkIdle moves CONSUMING -> IDLE once a revoke-triggered flush has
// already completed (and FlushSucceeded already returned the tracker to
// CONSUMING) — the final step of the revoke path, separate from the
// FLUSHING->IDLE edge used when a flush resolves straight to idle.
func (t *Tracker) MarkIdle() error {
	return t.transition([]State{StateConsuming, StateIdle}, StateIdle)
}

// RecordWrite updates the first/last write timestamps used for lag
// observability.
func (t *Tracker) RecordWrite(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstWriteAt.IsZero() {
		t.firstWriteAt = now
	}
	t.lastWriteAt = now
}

// SetEarliestUncommitted records the offset the loop should resume from
// if this partition needs to restart.
func (t *Tracker) SetEarliestUncommitted(offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.earliestUncommitted = offset
}

// EarliestUncommitted returns the last value SetEarliestUncommitted
// recorded.
func (t *Tracker) EarliestUncommitted() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.earliestUncommitted
}

// LockForAppend acquires the write lock for the duration of a single
// append; ConsumerLoop calls this once per message batch item.
func (t *Tracker) LockForAppend() {
	t.writeLock.RLock()
}

// UnlockForAppend releases the append lock.
func (t *Tracker) UnlockForAppend() {
	t.writeLock.RUnlock()
}

// LockForFlush excludes concurrent appends during the Uploader's
// snapshot+close step. Held only briefly — never across the network
// upload itself.
func (t *Tracker) LockForFlush() {
	t.writeLock.Lock()
}

// UnlockForFlush releases the flush lock.
func (t *Tracker) UnlockForFlush() {
	t.writeLock.Unlock()
}
