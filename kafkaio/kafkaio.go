// Package kafkaio adapts a Kafka consumer group to the ConsumerLoop's
// needs: a channel of decoded records plus rebalance notifications that
// must trigger a synchronous flush before any partition is released
// (spec.md §4.6, §5). Grounded on the teacher's consumer/kafka.go (the
// Servers/ClientID/fetch-size/offset-reset configuration surface) with
// the single-partition ConsumePartition call replaced by
// github.com/bsm/sarama-cluster's consumer-group client, since spec.md
// requires multiple secor processes to share a topic's partitions.
package kafkaio

import (
	"time"

	cluster "github.com/bsm/sarama-cluster"
	"github.com/pkg/errors"

	"github.com/trivago/secorgo/model"
)

// InitialOffset selects where a partition with no committed offset
// starts reading, mirroring the teacher's DefaultOffset setting.
type InitialOffset int

const (
	OffsetOldest InitialOffset = iota
	OffsetNewest
)

// Config carries the secor.kafka.* keys (spec.md §6).
type Config struct {
	Brokers         []string
	Group           string
	Topics          []string
	ClientID        string
	InitialOffset   InitialOffset
	MaxFetchBytes   int32
	ChannelBufferSize int
}

func (c Config) toClusterConfig() *cluster.Config {
	cc := cluster.NewConfig()
	cc.ClientID = c.ClientID
	if cc.ClientID == "" {
		cc.ClientID = "secorgo"
	}
	if c.MaxFetchBytes > 0 {
		cc.Consumer.Fetch.Max = c.MaxFetchBytes
	}
	if c.ChannelBufferSize > 0 {
		cc.ChannelBufferSize = c.ChannelBufferSize
	}
	if c.InitialOffset == OffsetNewest {
		cc.Consumer.Offsets.Initial = -1 // sarama.OffsetNewest
	} else {
		cc.Consumer.Offsets.Initial = -2 // sarama.OffsetOldest
	}
	cc.Group.Return.Notifications = true
	cc.Consumer.Return.Errors = true
	return cc
}

// Revocation is delivered on the Notifications channel whenever the
// group rebalances; ConsumerLoop must finish flushing every partition in
// Revoked before the next poll, per spec.md §5's rebalance-revoke rule.
type Revocation struct {
	Revoked map[string][]int32
	Claimed map[string][]int32
	Current map[string][]int32
}

// Consumer wraps a cluster.Consumer and converts its raw
// *sarama.ConsumerMessage stream into model.Message values.
type Consumer struct {
	inner    *cluster.Consumer
	records  chan model.Message
	revokes  chan Revocation
	done     chan struct{}
}

// New joins the named consumer group and starts the translation
// goroutines. Messages are available from Messages(); rebalance events
// from Revocations().
func New(cfg Config) (*Consumer, error) {
	inner, err := cluster.NewConsumer(cfg.Brokers, cfg.Group, cfg.Topics, cfg.toClusterConfig())
	if err != nil {
		return nil, errors.Wrap(err, "kafkaio: joining consumer group")
	}

	c := &Consumer{
		inner:   inner,
		records: make(chan model.Message, 256),
		revokes: make(chan Revocation, 8),
		done:    make(chan struct{}),
	}
	go c.pump()
	return c, nil
}

func (c *Consumer) pump() {
	defer close(c.done)
	for {
		select {
		case msg, ok := <-c.inner.Messages():
			if !ok {
				return
			}
			c.records <- model.Message{
				Topic:          msg.Topic,
				KafkaPartition: msg.Partition,
				Offset:         msg.Offset,
				Payload:        msg.Value,
				Timestamp:      msg.Timestamp,
			}
		case n, ok := <-c.inner.Notifications():
			if !ok {
				return
			}
			c.revokes <- Revocation{
				Revoked: toPartitionMap(n.Released),
				Claimed: toPartitionMap(n.Claimed),
				Current: toPartitionMap(n.Current),
			}
		}
	}
}

func toPartitionMap(in map[string][]int32) map[string][]int32 {
	out := make(map[string][]int32, len(in))
	for k, v := range in {
		out[k] = append([]int32(nil), v...)
	}
	return out
}

// Messages returns the decoded record stream.
func (c *Consumer) Messages() <-chan model.Message { return c.records }

// Revocations returns rebalance notifications. ConsumerLoop must
// synchronously flush every partition named in Revoked before its next
// read — spec.md §5: "a revoke handler must synchronously flush the
// revoked partition before acking the rebalance."
func (c *Consumer) Revocations() <-chan Revocation { return c.revokes }

// Errors surfaces transport-level errors (broker disconnects, metadata
// refresh failures); these never carry message payloads and are purely
// observational — the pump loop keeps running.
func (c *Consumer) Errors() <-chan error { return c.inner.Errors() }

// MarkOffset tells the group coordinator this offset has been durably
// committed downstream (by the OffsetStore), allowing Kafka's own
// consumer-group checkpoint to advance for visibility/lag tooling. This
// is advisory only — spec.md §4.5 makes OffsetStore, not Kafka's
// consumer-group offset, the source of truth for what has been
// uploaded.
func (c *Consumer) MarkOffset(topic string, partition int32, offset int64) {
	c.inner.MarkPartitionOffset(topic, partition, offset, "")
}

// Close leaves the consumer group and waits for the translation
// goroutine to drain, with a bound on how long to wait.
func (c *Consumer) Close() error {
	err := c.inner.Close()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
	}
	return err
}
