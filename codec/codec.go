// Package codec implements FileCodec (spec.md §4.4): pluggable record
// formats over a backing local file, each aware of the Kafka compression
// codec that produced the source messages.
//
// Concrete parsers for the record payload itself (JSON/Thrift/Avro/
// Protobuf) are out of scope (spec.md §1) — a codec only ever sees the
// raw KeyValue bytes a MessageParser/ConsumerLoop handed it.
package codec

import (
	"github.com/trivago/secorgo/model"
)

// Writer is the FileCodec writer contract (spec.md §4.4): Write appends,
// Length returns the on-disk byte count (post-compression, required by
// CommitPolicy's size threshold), Close flushes and releases any pooled
// compressor.
type Writer interface {
	Write(kv model.KeyValue) error
	Length() int64
	Close() error
}

// Reader is the FileCodec reader contract. Next returns the next record
// in offset order, or (nil, nil) at a clean EOF. A file whose final bytes
// are not delimiter-terminated returns a *secerrors.FramingError on the
// final call.
type Reader interface {
	Next() (*model.KeyValue, error)
}

// Codec opens readers/writers over a local path for one LogFilePath's
// lifetime. firstOffset seeds the reader's running offset counter
// (spec.md §4.4: "offset starts at the LogFilePath's firstOffset and
// increments by 1 per record").
type Codec interface {
	NewWriter(path string, firstOffset int64) (Writer, error)
	NewReader(path string, firstOffset int64) (Reader, error)
}

// Compression identifies the Kafka-side compression codec of the source
// messages, independent of which Codec variant is in use.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
	CompressionLZ4    Compression = "lz4"
)

// Factory constructs a Codec for one topic, given its configured variant
// name, compression, and delimiters. Selection mirrors the registry
// pattern the teacher uses for plugin type selection
// (core/pluginregistry.go), keyed here by secor.file.reader.writer.factory.
type Factory func(opts Options) (Codec, error)

// Options carries the primitive configuration a Codec needs. Per spec.md
// §9's "hidden global state" design note, these are injected at factory
// construction — no codec reads a process-wide config loader itself.
type Options struct {
	ReaderDelimiter byte
	WriterDelimiter byte
	HasWriterDelim  bool // empty writer delimiter means "do not append one"
	Compression     Compression
	Schema          string // required by the orc variant; empty otherwise
}

var registry = map[string]Factory{
	"delimited":    func(o Options) (Codec, error) { return NewDelimited(o), nil },
	"sequencefile": func(o Options) (Codec, error) { return NewSequenceFile(o), nil },
	"orc":          NewORC,
}

// Register adds or replaces a named codec variant. Exported so a
// deployment can plug in its own FileCodec without forking this package.
func Register(name string, f Factory) {
	registry[name] = f
}

// New resolves a codec variant by name (secor.file.reader.writer.factory).
func New(name string, opts Options) (Codec, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &unknownCodecError{name: name}
	}
	return f(opts)
}

type unknownCodecError struct{ name string }

func (e *unknownCodecError) Error() string { return "codec: unknown variant " + e.name }
