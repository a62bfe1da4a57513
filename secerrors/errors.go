// Package secerrors defines the error kinds used across the commit
// pipeline (spec.md §7): which ones are retried, which ones are fatal for
// a single Kafka partition, and which ones are fatal for the whole
// process.
package secerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParseError is returned by a MessageParser when it cannot derive logical
// partitions from a message. Non-fatal: the caller routes the message to
// a fallback partition and keeps consuming.
type ParseError struct {
	Topic string
	Cause error
}

func NewParseError(topic string, cause error) *ParseError {
	return &ParseError{Topic: topic, Cause: errors.WithStack(cause)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse message from topic %q: %v", e.Topic, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// TransientIOError wraps a failure from Kafka, BlobStore or OffsetStore
// that is worth retrying with backoff.
type TransientIOError struct {
	Op    string
	Cause error
}

func NewTransientIOError(op string, cause error) *TransientIOError {
	return &TransientIOError{Op: op, Cause: errors.WithStack(cause)}
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient I/O error during %s: %v", e.Op, e.Cause)
}

func (e *TransientIOError) Unwrap() error { return e.Cause }

// ConfigError is fatal at startup.
type ConfigError struct {
	Key   string
	Cause error
}

func NewConfigError(key string, cause error) *ConfigError {
	return &ConfigError{Key: key, Cause: errors.WithStack(cause)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %q: %v", e.Key, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// SchemaError is fatal for a single topic (e.g. an ORC codec without a
// registered schema); the partition loop for that topic halts, others
// continue.
type SchemaError struct {
	Topic string
	Cause error
}

func NewSchemaError(topic string, cause error) *SchemaError {
	return &SchemaError{Topic: topic, Cause: errors.WithStack(cause)}
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error for topic %q: %v", e.Topic, e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// InvariantViolation signals a bug: non-consecutive kafkaPartitions, a
// path that fails to round-trip, an offset that decreased. Fatal
// process-wide.
type InvariantViolation struct {
	Detail string
}

func NewInvariantViolation(format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Detail: fmt.Sprintf(format, args...)}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

// MalformedPathError is returned by PathBuilder.Parse when a path or
// basename does not match the recognized single-kafkaPartition shape.
// This module has no startup orphan scan; nothing here quarantines or
// deletes a local file because of this error.
type MalformedPathError struct {
	Path  string
	Cause error
}

func NewMalformedPathError(path string, cause error) *MalformedPathError {
	return &MalformedPathError{Path: path, Cause: cause}
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed log file path %q: %v", e.Path, e.Cause)
}

func (e *MalformedPathError) Unwrap() error { return e.Cause }

// FramingError is returned by a FileCodec reader when the final record in
// a file is not terminated by its delimiter.
type FramingError struct {
	Path string
}

func NewFramingError(path string) *FramingError {
	return &FramingError{Path: path}
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %q ends with an undelimited record", e.Path)
}
