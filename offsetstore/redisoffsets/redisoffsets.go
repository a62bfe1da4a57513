// Package redisoffsets is the lower-latency OffsetStore alternative for
// deployments that already run Redis for other coordination, using
// github.com/go-redis/redis — a teacher dependency the copied tree never
// actually exercised (see DESIGN.md). Each (group, topic, kafkaPartition)
// key maps to a Redis hash with "committed" and "lastSeen" fields.
package redisoffsets

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/trivago/secorgo/offsetstore"
)

const (
	fieldCommitted = "committed"
	fieldLastSeen  = "lastSeen"
)

// Store implements offsetstore.OffsetStore against a single Redis
// client/cluster.
type Store struct {
	client *redis.Client
	prefix string
}

// New builds a Store. keyPrefix namespaces all hash keys, e.g. "secor".
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) hashKey(key offsetstore.Key) string {
	return fmt.Sprintf("%s:offsets:%s:%s:%d", s.prefix, key.Group, key.Topic, key.KafkaPartition)
}

func (s *Store) getField(key offsetstore.Key, field string) (int64, bool, error) {
	val, err := s.client.HGet(s.hashKey(key), field).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "redisoffsets: HGET %s %s", s.hashKey(key), field)
	}
	offset, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "redisoffsets: parsing stored offset %q", val)
	}
	return offset, true, nil
}

func (s *Store) GetCommitted(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	return s.getField(key, fieldCommitted)
}

func (s *Store) GetLastSeen(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	return s.getField(key, fieldLastSeen)
}

// CommitOffset advances committed monotonically using a WATCH/MULTI
// transaction so a concurrent caller (should one ever exist for the same
// key) cannot race it backwards.
func (s *Store) CommitOffset(_ context.Context, key offsetstore.Key, offset int64) error {
	hashKey := s.hashKey(key)
	err := s.client.Watch(func(tx *redis.Tx) error {
		current, err := tx.HGet(hashKey, fieldCommitted).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if existing, convErr := strconv.ParseInt(current, 10, 64); convErr == nil && offset < existing {
				return nil // committed only ever increases
			}
		}
		_, err = tx.TxPipelined(func(pipe redis.Pipeliner) error {
			pipe.HSet(hashKey, fieldCommitted, strconv.FormatInt(offset, 10))
			return nil
		})
		return err
	}, hashKey)
	if err != nil {
		return errors.Wrapf(err, "redisoffsets: committing offset for %s", hashKey)
	}
	return nil
}

func (s *Store) SetLastSeen(_ context.Context, key offsetstore.Key, offset int64) error {
	hashKey := s.hashKey(key)
	err := s.client.Watch(func(tx *redis.Tx) error {
		current, err := tx.HGet(hashKey, fieldLastSeen).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if existing, convErr := strconv.ParseInt(current, 10, 64); convErr == nil && offset < existing {
				return nil // lastSeen only ever increases
			}
		}
		_, err = tx.TxPipelined(func(pipe redis.Pipeliner) error {
			pipe.HSet(hashKey, fieldLastSeen, strconv.FormatInt(offset, 10))
			return nil
		})
		return err
	}, hashKey)
	if err != nil {
		return errors.Wrapf(err, "redisoffsets: setting lastSeen for %s", hashKey)
	}
	return nil
}
