// Package model holds the plain data types that flow through the commit
// pipeline: the raw Kafka Message, the parser's output, and the codec's
// unit of record.
package model

import "time"

// Message is a single raw record as delivered by the Kafka transport
// adapter (spec.md §3). Transport details (leader, rebalance epoch, …)
// live in the adapter, not here.
type Message struct {
	Topic         string
	KafkaPartition int32
	Offset        int64
	Payload       []byte
	Timestamp     time.Time // zero value means "not provided by the broker"
}

// ParsedMessage is a Message annotated with the logical partitions a
// MessageParser derived from it.
type ParsedMessage struct {
	Message
	Partitions []string
}

// KeyValue is the unit a FileCodec reads and writes: the record's Kafka
// offset and its raw value bytes.
type KeyValue struct {
	Offset int64
	Value  []byte
}
