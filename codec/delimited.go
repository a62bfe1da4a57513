package codec

import (
	"bufio"
	"io"
	"os"

	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/secerrors"
)

// Delimited is the byte-framed FileCodec variant (spec.md §4.4): records
// are separated by a configurable delimiter byte on write, and split on a
// configurable (possibly different) delimiter byte on read.
type Delimited struct {
	opts Options
}

func NewDelimited(opts Options) *Delimited {
	return &Delimited{opts: opts}
}

func (d *Delimited) NewWriter(path string, firstOffset int64) (Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	counter := &countingWriter{underlying: f}
	compressed, err := wrapWriter(counter, d.opts.Compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &delimitedWriter{
		file:       f,
		counter:    counter,
		compressed: compressed,
		delimiter:  d.opts.WriterDelimiter,
		hasDelim:   d.opts.HasWriterDelim,
	}, nil
}

func (d *Delimited) NewReader(path string, firstOffset int64) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decompressed, err := wrapReader(f, d.opts.Compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &delimitedReader{
		file:      f,
		reader:    bufio.NewReader(decompressed),
		offset:    firstOffset,
		delimiter: d.opts.ReaderDelimiter,
		path:      path,
	}, nil
}

type delimitedWriter struct {
	file       *os.File
	counter    *countingWriter
	compressed io.WriteCloser
	delimiter  byte
	hasDelim   bool
}

func (w *delimitedWriter) Write(kv model.KeyValue) error {
	if _, err := w.compressed.Write(kv.Value); err != nil {
		return err
	}
	if w.hasDelim {
		if _, err := w.compressed.Write([]byte{w.delimiter}); err != nil {
			return err
		}
	}
	return nil
}

func (w *delimitedWriter) Length() int64 {
	return w.counter.written
}

func (w *delimitedWriter) Close() error {
	if err := w.compressed.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type delimitedReader struct {
	file      *os.File
	reader    *bufio.Reader
	offset    int64
	delimiter byte
	path      string
}

// Next returns the next record, or (nil, nil) at a clean EOF. A final
// record without a trailing delimiter is a FramingError (spec.md §4.4,
// scenario S4).
func (r *delimitedReader) Next() (*model.KeyValue, error) {
	line, err := r.reader.ReadBytes(r.delimiter)
	if err != nil {
		if err == io.EOF {
			if len(line) > 0 {
				return nil, secerrors.NewFramingError(r.path)
			}
			return nil, nil
		}
		return nil, err
	}

	value := line[:len(line)-1] // strip delimiter
	kv := &model.KeyValue{Offset: r.offset, Value: append([]byte(nil), value...)}
	r.offset++
	return kv, nil
}
