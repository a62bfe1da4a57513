// Package parser implements MessageParser (spec.md §4.3): deriving the
// logical partition path segments (and, for variants that can, a
// timestamp) from a raw Kafka record. Grounded on the teacher's
// string-keyed plugin registry (core/pluginregistry.go) for variant
// selection, and on format/grok.go + format/tojson.go for how the
// teacher pulls structured fields out of a message body via
// tcontainer.MarshalMap.
//
// MessageParser is deliberately a small, single-method interface;
// ExtractTimestampMillis is a separate optional capability some variants
// implement and callers can probe for via a type assertion, rather
// than a method every variant is forced to stub out. ConsumerLoop does
// not use it.
package parser

import (
	"fmt"

	"github.com/trivago/secorgo/model"
)

// MessageParser derives the Partitions a message belongs to. A parse
// failure must never abort the consumer loop (spec.md §4.3): callers
// route failures to a configured fallback partition and log a warning.
type MessageParser interface {
	ExtractPartitions(msg model.Message) ([]string, error)
}

// TimestampExtractor is an optional capability: a parser that can derive
// a message-embedded timestamp (as opposed to Kafka's own record
// timestamp) implements this so callers can prefer it for partitioning
// or lag metrics.
type TimestampExtractor interface {
	ExtractTimestampMillis(msg model.Message) (millis int64, ok bool, err error)
}

// Factory constructs a MessageParser from its secor.message.parser.*
// configuration. Mirrors codec.Factory's shape.
type Factory func(opts Options) (MessageParser, error)

// Options carries every knob the built-in variants need; unused fields
// are ignored by variants that don't need them.
type Options struct {
	// TimestampField is a dot-path into the JSON payload (e.g.
	// "meta.ts") read by the timestamped variant.
	TimestampField string
	// TimestampLayout is a Go reference-time layout. The timestamped and
	// daily-offset variants format the partition's date with it, e.g.
	// "2006-01-02". The pattern-date variant instead parses the captured
	// timestamp substring with it (default time.RFC3339); its partition
	// is always formatted as "2006-01-02".
	TimestampLayout string
	// GrokPattern is the pattern used to pull a timestamp substring out
	// of a non-JSON payload for the pattern-date variant.
	GrokPattern string
	// GrokTimestampField names the capture group holding the timestamp
	// substring.
	GrokTimestampField string
	// MessagesPerPartition buckets raw Kafka offsets for the
	// daily-offset variant when no embedded timestamp exists at all.
	MessagesPerPartition int64
	// PrefixEnable turns on the pattern-date variant's per-record prefix
	// folder, looked up from PrefixIdentifier's payload value through
	// PrefixMapping (secor.partition.prefix.enable).
	PrefixEnable bool
	// PrefixIdentifier is a dot-path into the JSON payload whose value
	// selects the prefix folder (secor.partition.prefix.identifier).
	PrefixIdentifier string
	// PrefixMapping maps an identifier value to its prefix folder; must
	// contain a "DEFAULT" entry used when the identifier's value (or the
	// identifier itself) is not found (secor.partition.prefix.mapping).
	PrefixMapping map[string]string
	// FallbackPartition is not read by any variant here; ConsumerLoop
	// takes the partition it routes parse failures to from its own
	// Config.FallbackPartition.
	FallbackPartition string
}

var registry = map[string]Factory{}

// Register adds or replaces a named parser variant.
func Register(name string, f Factory) {
	registry[name] = f
}

// New resolves a named variant (secor.message.parser.class).
func New(name string, opts Options) (MessageParser, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("parser: unknown variant %q", name)
	}
	return f(opts)
}

func init() {
	Register("timestamped", func(o Options) (MessageParser, error) { return NewTimestamped(o) })
	Register("patterndate", func(o Options) (MessageParser, error) { return NewPatternDate(o) })
	Register("dailyoffset", func(o Options) (MessageParser, error) { return NewDailyOffset(o), nil })
}
