package codec

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/trivago/secorgo/model"
)

// SequenceFile is a simplified stand-in for Hadoop's SequenceFile
// key/value record format (spec.md §4.4): each record is a
// length-prefixed value, framed with a fixed 4-byte big-endian length
// header. It satisfies the KeyValue read/write contract; it is not
// wire-compatible with a real Hadoop SequenceFile, since the binary
// stripe/sync-marker layout of that format is outside this spec's scope
// (spec.md §1 excludes concrete file codecs beyond the minimal contract).
type SequenceFile struct {
	opts Options
}

func NewSequenceFile(opts Options) *SequenceFile {
	return &SequenceFile{opts: opts}
}

func (s *SequenceFile) NewWriter(path string, firstOffset int64) (Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	counter := &countingWriter{underlying: f}
	compressed, err := wrapWriter(counter, s.opts.Compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sequenceFileWriter{file: f, counter: counter, compressed: compressed}, nil
}

func (s *SequenceFile) NewReader(path string, firstOffset int64) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decompressed, err := wrapReader(f, s.opts.Compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sequenceFileReader{file: f, reader: decompressed, offset: firstOffset}, nil
}

type sequenceFileWriter struct {
	file       *os.File
	counter    *countingWriter
	compressed io.WriteCloser
}

func (w *sequenceFileWriter) Write(kv model.KeyValue) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(kv.Value)))
	if _, err := w.compressed.Write(header[:]); err != nil {
		return err
	}
	_, err := w.compressed.Write(kv.Value)
	return err
}

func (w *sequenceFileWriter) Length() int64 { return w.counter.written }

func (w *sequenceFileWriter) Close() error {
	if err := w.compressed.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type sequenceFileReader struct {
	file   *os.File
	reader io.Reader
	offset int64
}

func (r *sequenceFileReader) Next() (*model.KeyValue, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.reader, header[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	value := make([]byte, size)
	if _, err := io.ReadFull(r.reader, value); err != nil {
		return nil, err
	}
	kv := &model.KeyValue{Offset: r.offset, Value: value}
	r.offset++
	return kv, nil
}
