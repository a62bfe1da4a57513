package parser

import (
	"testing"
	"time"

	"github.com/trivago/secorgo/model"
)

func TestTimestampedExtractsPartitionFromJSONField(t *testing.T) {
	p, err := New("timestamped", Options{TimestampField: "meta.ts", TimestampLayout: "2006-01-02"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := model.Message{Topic: "orders", Payload: []byte(`{"meta":{"ts":1753920000000}}`)}
	partitions, err := p.ExtractPartitions(msg)
	if err != nil {
		t.Fatalf("ExtractPartitions: %v", err)
	}
	if len(partitions) != 1 || partitions[0] == "" {
		t.Fatalf("got %v", partitions)
	}
}

func TestTimestampedMissingFieldErrors(t *testing.T) {
	p, err := New("timestamped", Options{TimestampField: "meta.ts"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := model.Message{Topic: "orders", Payload: []byte(`{"other":1}`)}
	if _, err := p.ExtractPartitions(msg); err == nil {
		t.Fatalf("expected error for missing timestamp field")
	}
}

func TestDailyOffsetBucketsByOffset(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	old := Now
	Now = func() time.Time { return frozen }
	defer func() { Now = old }()

	p := NewDailyOffset(Options{MessagesPerPartition: 10000})

	partitions, err := p.ExtractPartitions(model.Message{Offset: 23457})
	if err != nil {
		t.Fatalf("ExtractPartitions: %v", err)
	}
	want := []string{"dt=2024-03-01", "offset=20000"}
	if len(partitions) != len(want) || partitions[0] != want[0] || partitions[1] != want[1] {
		t.Fatalf("got %v, want %v", partitions, want)
	}
}

func TestPatternDatePrependsPrefixFromMapping(t *testing.T) {
	p, err := New("patterndate", Options{
		GrokPattern:        `(?P<ts>\d{4}-\d{2}-\d{2})`,
		GrokTimestampField: "ts",
		TimestampLayout:    "2006-01-02",
		PrefixEnable:       true,
		PrefixIdentifier:   "tenant",
		PrefixMapping:      map[string]string{"acme": "folder-acme", "DEFAULT": "folder-other"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := model.Message{Topic: "orders", Payload: []byte(`{"tenant":"acme","ts":"2024-03-01"}`)}
	partitions, err := p.ExtractPartitions(msg)
	if err != nil {
		t.Fatalf("ExtractPartitions: %v", err)
	}
	want := []string{"folder-acme", "2024-03-01"}
	if len(partitions) != len(want) || partitions[0] != want[0] || partitions[1] != want[1] {
		t.Fatalf("got %v, want %v", partitions, want)
	}
}

func TestPatternDateFallsBackToDefaultPrefix(t *testing.T) {
	p, err := New("patterndate", Options{
		GrokPattern:        `(?P<ts>\d{4}-\d{2}-\d{2})`,
		GrokTimestampField: "ts",
		TimestampLayout:    "2006-01-02",
		PrefixEnable:       true,
		PrefixIdentifier:   "tenant",
		PrefixMapping:      map[string]string{"acme": "folder-acme", "DEFAULT": "folder-other"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := model.Message{Topic: "orders", Payload: []byte(`{"tenant":"unknown-tenant","ts":"2024-03-01"}`)}
	partitions, err := p.ExtractPartitions(msg)
	if err != nil {
		t.Fatalf("ExtractPartitions: %v", err)
	}
	if partitions[0] != "folder-other" {
		t.Fatalf("got prefix %q, want folder-other", partitions[0])
	}
}

func TestPatternDateRequiresDefaultMappingEntry(t *testing.T) {
	_, err := New("patterndate", Options{
		GrokPattern:        `(?P<ts>\d{4}-\d{2}-\d{2})`,
		GrokTimestampField: "ts",
		PrefixEnable:       true,
		PrefixIdentifier:   "tenant",
		PrefixMapping:      map[string]string{"acme": "folder-acme"},
	})
	if err == nil {
		t.Fatalf("expected error for prefix mapping without DEFAULT entry")
	}
}

func TestUnknownVariantErrors(t *testing.T) {
	if _, err := New("does-not-exist", Options{}); err == nil {
		t.Fatalf("expected error for unknown parser variant")
	}
}
