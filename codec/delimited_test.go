package codec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trivago/secorgo/model"
)

func TestDelimitedWriteReadRoundTripScenarioS4(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0_3_00000000000000000005")

	c := NewDelimited(Options{WriterDelimiter: '\n', HasWriterDelim: true, ReaderDelimiter: '\n'})

	w, err := c.NewWriter(path, 5)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	records := [][]byte{[]byte("b0"), []byte("b1"), []byte("b2")}
	for _, v := range records {
		if err := w.Write(model.KeyValue{Value: v}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := c.NewReader(path, 5)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	wantOffset := int64(5)
	for i, want := range records {
		kv, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if kv == nil {
			t.Fatalf("Next(%d): unexpected EOF", i)
		}
		if kv.Offset != wantOffset || string(kv.Value) != string(want) {
			t.Fatalf("Next(%d) = %+v, want offset=%d value=%s", i, kv, wantOffset, want)
		}
		wantOffset++
	}
	last, err := r.Next()
	if err != nil {
		t.Fatalf("final Next: %v", err)
	}
	if last != nil {
		t.Fatalf("expected EOF, got %+v", last)
	}
}

func TestDelimitedFramingErrorOnUndelimitedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0_3_00000000000000000000")

	if err := os.WriteFile(path, []byte("complete\nincomplete-no-delimiter"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := NewDelimited(Options{ReaderDelimiter: '\n'})
	r, err := c.NewReader(path, 0)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	first, err := r.Next()
	if err != nil || first == nil {
		t.Fatalf("first Next: kv=%v err=%v", first, err)
	}

	_, err = r.Next()
	if err == nil {
		t.Fatal("expected FramingError on undelimited tail")
	}
}

func TestLengthReflectsOnDiskBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0_3_00000000000000000000")

	c := NewDelimited(Options{WriterDelimiter: '\n', HasWriterDelim: true})
	w, err := c.NewWriter(path, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if w.Length() != 0 {
		t.Fatalf("Length() before writes = %d, want 0", w.Length())
	}
	if err := w.Write(model.KeyValue{Value: []byte("hello")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Length() != 6 {
		t.Fatalf("Length() = %d, want 6", w.Length())
	}
	w.Close()
}
