// Package registry implements FileRegistry (spec.md §4.2): the in-memory
// index of open writers keyed by logical LogFilePath, tracking size,
// record count, age and offset coverage. Grounded on the teacher's
// producer/awsS3.go `filesByStream`/`files` maps guarded by a
// `batchedFileGuard *sync.RWMutex`.
package registry

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trivago/secorgo/codec"
	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/pathbuilder"
	"github.com/trivago/secorgo/secerrors"
)

// Entry is one open LogFilePath: RegistryEntry in spec.md §3. It is
// exclusively owned by the Registry; callers borrow a reference for the
// duration of a single append.
type Entry struct {
	Path         pathbuilder.LogFilePath
	BytesWritten int64
	RecordCount  int64
	CreatedAt    time.Time
	LastWriteAt  time.Time
	FirstOffset  int64
	LastOffset   int64

	writer codec.Writer
	sealed bool
}

// Sealed reports whether Close has already been called on this entry; a
// sealed entry accepts no further appends.
func (e *Entry) Sealed() bool { return e.sealed }

// destKey identifies the logical destination a message routes to,
// independent of which offset first opened it.
type destKey struct {
	topic          string
	kafkaPartition int32
	partitions     string
}

// partitionKey identifies a (topic, kafkaPartition) pair for the
// max-lastOffset bookkeeping spec.md §4.2 requires.
type partitionKey struct {
	topic          string
	kafkaPartition int32
}

// CodecFor resolves the FileCodec to use for a topic. Supplied by the
// caller so Registry never hardcodes a codec variant.
type CodecFor func(topic string) (codec.Codec, error)

// Registry is safe for concurrent use across Kafka partitions; per
// spec.md §5 it is logically partitioned by kafkaPartition so loops never
// contend on each other's entries, but a single mutex is simple and
// correct since all operations are cheap map lookups plus an I/O call
// that does not hold the lock during the write itself.
type Registry struct {
	localRoot string
	codecFor  CodecFor

	mu               sync.RWMutex
	entries          map[destKey]*Entry
	maxLastOffset    map[partitionKey]int64
}

// New builds a Registry rooted at localRoot (secor.local.path).
func New(localRoot string, codecFor CodecFor) *Registry {
	return &Registry{
		localRoot:     localRoot,
		codecFor:      codecFor,
		entries:       make(map[destKey]*Entry),
		maxLastOffset: make(map[partitionKey]int64),
	}
}

func keyOf(p pathbuilder.LogFilePath) destKey {
	return destKey{
		topic:          p.Topic,
		kafkaPartition: p.KafkaPartitions[0],
		partitions:     strings.Join(p.Partitions, "/"),
	}
}

// GetOrOpen returns the existing entry for path's destination, or opens a
// new writer if none exists yet. path.Offsets[0] seeds FirstOffset only
// on creation; an existing entry keeps its original FirstOffset.
func (r *Registry) GetOrOpen(path pathbuilder.LogFilePath) (*Entry, error) {
	key := keyOf(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e, nil
	}

	c, err := r.codecFor(path.Topic)
	if err != nil {
		return nil, err
	}

	localPath := path.WithPrefix(r.localRoot).Render()
	if err := os.MkdirAll(dirOf(localPath), 0755); err != nil {
		return nil, errors.Wrapf(err, "registry: creating directory for %s", localPath)
	}

	w, err := c.NewWriter(localPath, path.Offsets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "registry: opening writer for %s", localPath)
	}

	now := time.Now()
	entry := &Entry{
		Path:        path,
		CreatedAt:   now,
		LastWriteAt: now,
		FirstOffset: path.Offsets[0],
		LastOffset:  path.Offsets[0] - 1, // no records written yet
		writer:      w,
	}
	r.entries[key] = entry
	return entry, nil
}

func dirOf(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return "."
	}
	return p[:idx]
}

// Append writes kv via entry's codec and updates bookkeeping. It also
// updates the (topic, kafkaPartition) max-lastOffset high-water mark
// Uploader uses as the new committed candidate, per spec.md §4.2: "the
// registry must therefore track, per (topic, kafkaPartition), the maximum
// lastOffset across its entries."
func (r *Registry) Append(entry *Entry, kv model.KeyValue) error {
	if entry.sealed {
		return secerrors.NewInvariantViolation("append to sealed entry %s", entry.Path.Render())
	}
	if err := entry.writer.Write(kv); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry.BytesWritten = entry.writer.Length()
	entry.RecordCount++
	entry.LastWriteAt = time.Now()
	if kv.Offset > entry.LastOffset {
		entry.LastOffset = kv.Offset
	}

	pk := partitionKey{topic: entry.Path.Topic, kafkaPartition: entry.Path.KafkaPartitions[0]}
	if entry.LastOffset > r.maxLastOffset[pk] {
		r.maxLastOffset[pk] = entry.LastOffset
	}
	return nil
}

// AdvanceLastOffset records that offset was observed for (topic,
// kafkaPartition) even though no entry was written for it — spec.md
// §4.2's carve-out for parser-skipped messages, which must still be
// covered by some entry's lastOffset.
func (r *Registry) AdvanceLastOffset(topic string, kafkaPartition int32, offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pk := partitionKey{topic: topic, kafkaPartition: kafkaPartition}
	if offset > r.maxLastOffset[pk] {
		r.maxLastOffset[pk] = offset
	}
}

// MaxLastOffset returns the highest offset observed for (topic,
// kafkaPartition) across all entries (written or skipped).
func (r *Registry) MaxLastOffset(topic string, kafkaPartition int32) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pk := partitionKey{topic: topic, kafkaPartition: kafkaPartition}
	offset, ok := r.maxLastOffset[pk]
	return offset, ok
}

// EntriesFor returns all open entries for (topic, kafkaPartition).
func (r *Registry) EntriesFor(topic string, kafkaPartition int32) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for k, e := range r.entries {
		if k.topic == topic && k.kafkaPartition == kafkaPartition {
			out = append(out, e)
		}
	}
	return out
}

// Close flushes and closes entry's writer. The entry becomes sealed: no
// further appends are accepted. Returns the local file path that was
// finalized.
func (r *Registry) Close(entry *Entry) (string, error) {
	r.mu.Lock()
	entry.sealed = true
	r.mu.Unlock()

	if err := entry.writer.Close(); err != nil {
		return "", errors.Wrap(err, "registry: closing writer")
	}
	return entry.Path.WithPrefix(r.localRoot).Render(), nil
}

// Drop removes entry from the registry and deletes its local file. Called
// once the Uploader has committed the new offset.
func (r *Registry) Drop(entry *Entry) error {
	r.mu.Lock()
	key := keyOf(entry.Path)
	delete(r.entries, key)
	r.mu.Unlock()

	localPath := entry.Path.WithPrefix(r.localRoot).Render()
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "registry: deleting local file %s", localPath)
	}
	return nil
}

// Adopt registers a pre-existing Entry whose writer is already closed;
// the entry is marked sealed, so appends to it are rejected. No startup
// orphan scan in this module calls it.
func (r *Registry) Adopt(entry *Entry) {
	entry.sealed = true
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[keyOf(entry.Path)] = entry

	pk := partitionKey{topic: entry.Path.Topic, kafkaPartition: entry.Path.KafkaPartitions[0]}
	if entry.LastOffset > r.maxLastOffset[pk] {
		r.maxLastOffset[pk] = entry.LastOffset
	}
}
