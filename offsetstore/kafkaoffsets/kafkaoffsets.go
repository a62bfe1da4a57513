// Package kafkaoffsets is the default OffsetStore backend, committing
// offsets into Kafka's own __consumer_offsets topic via
// github.com/Shopify/sarama's OffsetManager. This is the Go-ecosystem
// answer to spec.md §6's "typically backed by ZooKeeper or equivalent":
// committing into Kafka itself needs no separate coordination service and
// no bespoke ZooKeeper client (none of which appears anywhere in the
// example pack this module was grounded on — see DESIGN.md).
//
// lastSeen has no native Kafka analogue, so it is tracked in memory only;
// losing it across a restart is acceptable per spec.md §3 — it exists
// purely for lag metrics, never for commit-safety decisions.
package kafkaoffsets

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/trivago/secorgo/offsetstore"
)

// Store implements offsetstore.OffsetStore on top of a shared
// sarama.OffsetManager, one per consumer group.
type Store struct {
	group string

	mu       sync.Mutex
	managers map[offsetstore.Key]sarama.PartitionOffsetManager
	lastSeen map[offsetstore.Key]int64

	offsetMgr sarama.OffsetManager
}

// New builds a Store for the given consumer group using client, which
// the caller owns and must keep open for the Store's lifetime.
func New(client sarama.Client, group string) (*Store, error) {
	mgr, err := sarama.NewOffsetManagerFromClient(group, client)
	if err != nil {
		return nil, errors.Wrap(err, "kafkaoffsets: creating offset manager")
	}
	return &Store{
		group:     group,
		managers:  make(map[offsetstore.Key]sarama.PartitionOffsetManager),
		lastSeen:  make(map[offsetstore.Key]int64),
		offsetMgr: mgr,
	}, nil
}

func (s *Store) partitionManager(key offsetstore.Key) (sarama.PartitionOffsetManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pm, ok := s.managers[key]; ok {
		return pm, nil
	}
	pm, err := s.offsetMgr.ManagePartition(key.Topic, key.KafkaPartition)
	if err != nil {
		return nil, errors.Wrapf(err, "kafkaoffsets: managing %s/%d", key.Topic, key.KafkaPartition)
	}
	s.managers[key] = pm
	return pm, nil
}

func (s *Store) GetCommitted(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	pm, err := s.partitionManager(key)
	if err != nil {
		return 0, false, err
	}
	offset, _ := pm.NextOffset()
	if offset < 0 {
		return 0, false, nil
	}
	return offset, true, nil
}

func (s *Store) CommitOffset(_ context.Context, key offsetstore.Key, offset int64) error {
	pm, err := s.partitionManager(key)
	if err != nil {
		return err
	}
	pm.MarkOffset(offset, "")
	return nil
}

func (s *Store) SetLastSeen(_ context.Context, key offsetstore.Key, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lastSeen[key]; ok && offset < prev {
		return nil
	}
	s.lastSeen[key] = offset
	return nil
}

func (s *Store) GetLastSeen(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, ok := s.lastSeen[key]
	return offset, ok, nil
}

// Close releases the underlying offset manager and all partition
// managers.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pm := range s.managers {
		pm.Close()
	}
	return s.offsetMgr.Close()
}
