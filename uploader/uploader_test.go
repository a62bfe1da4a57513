package uploader

import (
	"context"
	"io/ioutil"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/trivago/secorgo/codec"
	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/offsetstore"
	"github.com/trivago/secorgo/offsetstore/memoffsets"
	"github.com/trivago/secorgo/partition"
	"github.com/trivago/secorgo/pathbuilder"
	"github.com/trivago/secorgo/registry"
)

type fakeBlobStore struct {
	mu       sync.Mutex
	uploaded map[string]string
	failN    int // fail this many calls to Upload before succeeding
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{uploaded: make(map[string]string)}
}

func (f *fakeBlobStore) Upload(_ context.Context, localPath, remoteURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errFakeUpload
	}
	data, err := ioutil.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.uploaded[remoteURI] = string(data)
	return nil
}

func (f *fakeBlobStore) List(context.Context, string) ([]string, error)   { return nil, nil }
func (f *fakeBlobStore) Delete(context.Context, string) error             { return nil }

var errFakeUpload = &fakeErr{"simulated upload failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func setupRegistry(t *testing.T, root string) (*registry.Registry, pathbuilder.LogFilePath) {
	t.Helper()
	codecFor := func(string) (codec.Codec, error) {
		return codec.New("delimited", codec.Options{WriterDelimiter: '\n', HasWriterDelim: true, Compression: codec.CompressionNone})
	}
	reg := registry.New(root, codecFor)
	path, err := pathbuilder.New(root, "orders", []string{"2026-07-31"}, 0, []int32{0}, []int64{10}, ".log", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return reg, path
}

func TestFlushUploadsCommitsAndCleansUp(t *testing.T) {
	root := t.TempDir()
	reg, path := setupRegistry(t, root)

	entry, err := reg.GetOrOpen(path)
	if err != nil {
		t.Fatalf("GetOrOpen: %v", err)
	}
	for i := int64(10); i < 13; i++ {
		if err := reg.Append(entry, model.KeyValue{Offset: i, Value: []byte("row")}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	store := newFakeBlobStore()
	offsets := memoffsets.New()
	log := logrus.New()
	log.SetOutput(ioutil.Discard)

	u := New(Config{Group: "g1"}, reg, store, offsets, log)
	tracker := partition.New("orders", 0)
	tracker.Start()

	if err := u.Flush(context.Background(), tracker); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	key := offsetstore.Key{Group: "g1", Topic: "orders", KafkaPartition: 0}
	committed, ok, err := offsets.GetCommitted(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("GetCommitted: %v ok=%v", err, ok)
	}
	if committed != 13 {
		t.Fatalf("committed = %d, want 13", committed)
	}

	if len(store.uploaded) != 1 {
		t.Fatalf("uploaded %d objects, want 1", len(store.uploaded))
	}

	remaining := reg.EntriesFor("orders", 0)
	if len(remaining) != 0 {
		t.Fatalf("expected entry to be dropped, got %d remaining", len(remaining))
	}

	localPath := path.WithPrefix(root).Render()
	if _, err := os.Stat(localPath); !os.IsNotExist(err) {
		t.Fatalf("expected local file %s to be deleted", localPath)
	}

	if tracker.State() != partition.StateConsuming {
		t.Fatalf("state = %s, want CONSUMING", tracker.State())
	}
}

func TestFlushRetriesTransientUploadFailures(t *testing.T) {
	root := t.TempDir()
	reg, path := setupRegistry(t, root)

	entry, err := reg.GetOrOpen(path)
	if err != nil {
		t.Fatalf("GetOrOpen: %v", err)
	}
	if err := reg.Append(entry, model.KeyValue{Offset: 10, Value: []byte("row")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	store := newFakeBlobStore()
	store.failN = 2
	offsets := memoffsets.New()
	log := logrus.New()
	log.SetOutput(ioutil.Discard)

	u := New(Config{Group: "g1", InitialBackoff: 0, MaxRetries: 3}, reg, store, offsets, log)
	tracker := partition.New("orders", 0)
	tracker.Start()

	if err := u.Flush(context.Background(), tracker); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(store.uploaded) != 1 {
		t.Fatalf("uploaded %d objects, want 1 after retries", len(store.uploaded))
	}
}

func TestFlushLeavesPartitionFailedOnPersistentUploadFailure(t *testing.T) {
	root := t.TempDir()
	reg, path := setupRegistry(t, root)

	entry, err := reg.GetOrOpen(path)
	if err != nil {
		t.Fatalf("GetOrOpen: %v", err)
	}
	if err := reg.Append(entry, model.KeyValue{Offset: 10, Value: []byte("row")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	store := newFakeBlobStore()
	store.failN = 100
	offsets := memoffsets.New()
	log := logrus.New()
	log.SetOutput(ioutil.Discard)

	u := New(Config{Group: "g1", InitialBackoff: 0, MaxRetries: 1}, reg, store, offsets, log)
	tracker := partition.New("orders", 0)
	tracker.Start()

	if err := u.Flush(context.Background(), tracker); err == nil {
		t.Fatalf("expected Flush to fail")
	}
	if tracker.State() != partition.StateFailed {
		t.Fatalf("state = %s, want FAILED", tracker.State())
	}

	localPath := path.WithPrefix(root).Render()
	if _, err := os.Stat(localPath); err != nil {
		t.Fatalf("expected local file to survive a failed flush: %v", err)
	}

	key := offsetstore.Key{Group: "g1", Topic: "orders", KafkaPartition: 0}
	if _, ok, _ := offsets.GetCommitted(context.Background(), key); ok {
		t.Fatalf("committed offset must not advance on failed flush")
	}
}
