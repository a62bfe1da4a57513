package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "secor.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadReadsTypedValues(t *testing.T) {
	path := writeTempConfig(t, `
secor.kafka.topic.filter: "orders.*"
secor.max.file.size.bytes: 104857600
secor.upload.retry.enabled: true
secor.max.file.age: "10m"
secor.kafka.brokers:
  - "broker1:9092"
  - "broker2:9092"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.GetString("secor.kafka.topic.filter", ""); got != "orders.*" {
		t.Fatalf("GetString = %q", got)
	}
	if got := cfg.GetInt64("secor.max.file.size.bytes", 0); got != 104857600 {
		t.Fatalf("GetInt64 = %d", got)
	}
	if got := cfg.GetBool("secor.upload.retry.enabled", false); !got {
		t.Fatalf("GetBool = %v", got)
	}
	if got := cfg.GetDuration("secor.max.file.age", 0); got != 10*time.Minute {
		t.Fatalf("GetDuration = %v", got)
	}
	brokers := cfg.GetStringSlice("secor.kafka.brokers", nil)
	if len(brokers) != 2 || brokers[0] != "broker1:9092" {
		t.Fatalf("GetStringSlice = %v", brokers)
	}
}

func TestMustGetStringErrorsWhenMissing(t *testing.T) {
	path := writeTempConfig(t, "secor.kafka.topic.filter: \"orders.*\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.MustGetString("secor.local.path"); err == nil {
		t.Fatalf("expected error for missing required key")
	}
}

func TestEnvOverrideWins(t *testing.T) {
	path := writeTempConfig(t, "secor.kafka.topic.filter: \"orders.*\"\n")
	os.Setenv("SECOR_KAFKA_TOPIC_FILTER", "events.*")
	defer os.Unsetenv("SECOR_KAFKA_TOPIC_FILTER")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetString("secor.kafka.topic.filter", ""); got != "events.*" {
		t.Fatalf("GetString = %q, want env override", got)
	}
}
