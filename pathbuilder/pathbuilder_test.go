package pathbuilder

import (
	"regexp"
	"testing"
	"time"
)

func TestRenderDefaultLayoutScenarioS1(t *testing.T) {
	p, err := New("prefix", "t", []string{"dt=2014-05-13"}, 0, []int32{3}, []int64{100}, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := p.Render()
	want := "prefix/t/dt=2014-05-13/0_3_00000000000000000100"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRenderPatternScenarioS2(t *testing.T) {
	old := Now
	defer func() { Now = old }()
	Now = func() time.Time { return time.UnixMilli(1700000000000).UTC() }

	p, err := New("prefix", "dt=2024-01-02", []string{"dt=2024-01-02"}, 0, []int32{7}, []int64{42}, ".json", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Pattern = "{partition}-{currentTimestamp}"

	got := p.Render()
	want := "prefix/dt=2024-01-02-1700000000000.json"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRoundTripSingleKafkaPartition(t *testing.T) {
	p, err := New("s3://bucket/root", "topic", []string{"dt=2024-03-01"}, 2, []int32{9}, []int64{123456}, ".log", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rendered := p.Render()

	parsed, err := Parse("s3://bucket/root", rendered)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.Prefix != p.Prefix || parsed.Topic != p.Topic || parsed.Generation != p.Generation ||
		parsed.Extension != p.Extension || len(parsed.Partitions) != len(p.Partitions) ||
		parsed.Partitions[0] != p.Partitions[0] ||
		parsed.KafkaPartitions[0] != p.KafkaPartitions[0] || parsed.Offsets[0] != p.Offsets[0] {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, p)
	}
}

func TestParseRejectsMultiKafkaPartitionBasename(t *testing.T) {
	_, err := Parse("prefix", "prefix/t/dt=2024-01-01/0_3-4_abcXYZ-_123")
	if err == nil {
		t.Fatal("expected MalformedPathError for multi-kafkaPartition basename, got nil")
	}
}

func TestBasenameFormatRegex(t *testing.T) {
	single, err := New("p", "t", nil, 0, []int32{3}, []int64{100}, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !regexp.MustCompile(`^\d+_\d+_\d{20}$`).MatchString(single.basename()) {
		t.Fatalf("single-kp basename %q does not match expected format", single.basename())
	}

	multi, err := New("p", "t", nil, 0, []int32{3, 4}, []int64{100, 200}, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !regexp.MustCompile(`^\d+_\d+-\d+_[A-Za-z0-9_-]+$`).MatchString(multi.basename()) {
		t.Fatalf("multi-kp basename %q does not match expected format", multi.basename())
	}
}

func TestCRCPath(t *testing.T) {
	p, err := New("prefix", "t", []string{"dt=2024-01-01"}, 0, []int32{3}, []int64{100}, ".log", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := p.CRCPath()
	want := "prefix/t/dt=2024-01-01/.0_3_00000000000000000100.crc"
	if got != want {
		t.Fatalf("CRCPath() = %q, want %q", got, want)
	}
}

func TestNewRejectsNonConsecutiveKafkaPartitions(t *testing.T) {
	_, err := New("p", "t", nil, 0, []int32{3, 5}, []int64{1, 2}, "", nil)
	if err == nil {
		t.Fatal("expected InvariantViolation for non-consecutive kafkaPartitions")
	}
}
