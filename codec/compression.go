package codec

import (
	"compress/gzip"
	"io"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
)

// wrapWriter layers the configured compression on top of a plain
// byte-counting writer. Gzip uses the standard library: no ecosystem
// gzip writer appears anywhere in the retrieved example pack, so stdlib
// is the deliberate exception here (see DESIGN.md).
func wrapWriter(underlying io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionSnappy:
		return snappy.NewBufferedWriter(underlying), nil
	case CompressionLZ4:
		return lz4.NewWriter(underlying), nil
	case CompressionGzip:
		return gzip.NewWriter(underlying), nil
	case CompressionNone, "":
		return nopWriteCloser{underlying}, nil
	default:
		return nopWriteCloser{underlying}, nil
	}
}

func wrapReader(underlying io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case CompressionSnappy:
		return snappy.NewReader(underlying), nil
	case CompressionLZ4:
		return lz4.NewReader(underlying), nil
	case CompressionGzip:
		return gzip.NewReader(underlying)
	case CompressionNone, "":
		return underlying, nil
	default:
		return underlying, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ORCCompressionKind is the subset of ORC compression kinds this codec
// maps Kafka compression into (spec.md §4.4).
type ORCCompressionKind string

const (
	ORCNone   ORCCompressionKind = "NONE"
	ORCZlib   ORCCompressionKind = "ZLIB"
	ORCSnappy ORCCompressionKind = "SNAPPY"
	ORCLZ4    ORCCompressionKind = "LZ4"
)

// KafkaToORCCompression implements the exact mapping spec.md §4.4
// specifies: LZ4→LZ4, Snappy→SNAPPY, Gzip→ZLIB, else NONE.
func KafkaToORCCompression(c Compression) ORCCompressionKind {
	switch c {
	case CompressionLZ4:
		return ORCLZ4
	case CompressionSnappy:
		return ORCSnappy
	case CompressionGzip:
		return ORCZlib
	default:
		return ORCNone
	}
}
