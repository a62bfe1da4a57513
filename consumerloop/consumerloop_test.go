package consumerloop

import (
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trivago/secorgo/codec"
	"github.com/trivago/secorgo/commitpolicy"
	"github.com/trivago/secorgo/kafkaio"
	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/offsetstore"
	"github.com/trivago/secorgo/offsetstore/memoffsets"
	"github.com/trivago/secorgo/parser"
	"github.com/trivago/secorgo/registry"
	"github.com/trivago/secorgo/uploader"
)

type fakeSource struct {
	messages    chan model.Message
	revocations chan kafkaio.Revocation
	errs        chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages:    make(chan model.Message, 16),
		revocations: make(chan kafkaio.Revocation, 4),
		errs:        make(chan error, 4),
	}
}

func (f *fakeSource) Messages() <-chan model.Message           { return f.messages }
func (f *fakeSource) Revocations() <-chan kafkaio.Revocation    { return f.revocations }
func (f *fakeSource) Errors() <-chan error                      { return f.errs }

type fakeBlobStore struct {
	uploaded map[string]string
}

func (f *fakeBlobStore) Upload(_ context.Context, localPath, remoteURI string) error {
	data, err := ioutil.ReadFile(localPath)
	if err != nil {
		return err
	}
	if f.uploaded == nil {
		f.uploaded = make(map[string]string)
	}
	f.uploaded[remoteURI] = string(data)
	return nil
}
func (f *fakeBlobStore) List(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeBlobStore) Delete(context.Context, string) error           { return nil }

func TestExtractChannelIDReadsDottedPayloadField(t *testing.T) {
	payload := []byte(`{"meta":{"channel":"checkout"}}`)
	got := extractChannelID(payload, []string{"meta", "channel"})
	if len(got) != 1 || got[0] != "checkout" {
		t.Fatalf("got %v, want [checkout]", got)
	}
}

func TestExtractChannelIDMissingFieldYieldsNil(t *testing.T) {
	payload := []byte(`{"meta":{}}`)
	if got := extractChannelID(payload, []string{"meta", "channel"}); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestExtractChannelIDDisabledWhenFieldUnset(t *testing.T) {
	if got := extractChannelID([]byte(`{"meta":{"channel":"checkout"}}`), nil); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestLoopRoutesParseFailuresToFallbackPartition(t *testing.T) {
	root := t.TempDir()
	codecFor := func(string) (codec.Codec, error) {
		return codec.New("delimited", codec.Options{WriterDelimiter: '\n', HasWriterDelim: true, Compression: codec.CompressionNone})
	}
	reg := registry.New(root, codecFor)
	policy := commitpolicy.New(commitpolicy.Config{MaxFileRecords: 1000})
	store := &fakeBlobStore{}
	offsets := memoffsets.New()
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	up := uploader.New(uploader.Config{Group: "g1"}, reg, store, offsets, log)

	// "row" is not JSON, so every message fails to parse.
	p, err := parser.NewTimestamped(parser.Options{TimestampField: "ts"})
	if err != nil {
		t.Fatalf("NewTimestamped: %v", err)
	}
	src := newFakeSource()

	loop := New(Config{Group: "g1", RemoteRoot: root, Extension: ".log", FallbackPartition: []string{"_fallback"}}, src, p, reg, policy, up, offsets, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	src.messages <- model.Message{Topic: "orders", KafkaPartition: 0, Offset: 5, Payload: []byte("row")}

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	entries := reg.EntriesFor("orders", 0)
	if len(entries) != 1 {
		t.Fatalf("expected one open entry, got %d", len(entries))
	}
	if entries[0].RecordCount != 1 {
		t.Fatalf("expected 1 record written, got %d", entries[0].RecordCount)
	}
	if got := entries[0].Path.Partitions; len(got) != 1 || got[0] != "_fallback" {
		t.Fatalf("partitions = %v, want [_fallback]", got)
	}

	key := offsetstore.Key{Group: "g1", Topic: "orders", KafkaPartition: 0}
	lastSeen, ok, err := offsets.GetLastSeen(context.Background(), key)
	if err != nil || !ok || lastSeen != 5 {
		t.Fatalf("lastSeen = %d ok=%v err=%v, want 5", lastSeen, ok, err)
	}
}
