// Package pathbuilder renders and parses LogFilePath values: the
// addressing primitive of the commit pipeline (spec.md §3, §4.1, §6).
//
// Placing offsets in the filename is what makes uploads idempotent — a
// retried upload overwrites the same remote object with identical bytes,
// provided the codec is deterministic over the same input sequence.
package pathbuilder

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/trivago/secorgo/secerrors"
)

// Now is overridden in tests so {currentTimestamp}/{currentTime}/{currentDate}
// substitutions are deterministic (see spec.md §8 scenario S2).
var Now = time.Now

// RandomHex is overridden in tests to make {randomHex} deterministic.
var RandomHex = defaultRandomHex

func defaultRandomHex() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "0000"
	}
	return hex.EncodeToString(buf)
}

// LogFilePath is the addressing primitive: everything needed to name and
// locate one registry entry's file, locally and remotely.
//
// Per spec.md §9's "cyclic-looking references" design note, Pattern is a
// plain field set by the caller at construction time — LogFilePath never
// holds a config back-reference.
type LogFilePath struct {
	Prefix                   string
	Topic                    string
	Partitions               []string
	Generation               int
	KafkaPartitions          []int32
	Offsets                  []int64
	Extension                string
	MessageChannelIdentifier []string
	Pattern                  string // optional override template; empty means the default layout
}

// New validates and constructs a LogFilePath. It enforces the invariants
// from spec.md §3: at least one (kafkaPartition, offset) pair, offsets and
// kafkaPartitions the same length, and kafkaPartitions consecutive
// ascending.
func New(prefix, topic string, partitions []string, generation int, kafkaPartitions []int32, offsets []int64, extension string, channelID []string) (LogFilePath, error) {
	if len(kafkaPartitions) == 0 || len(kafkaPartitions) != len(offsets) {
		return LogFilePath{}, secerrors.NewInvariantViolation(
			"kafkaPartitions (%d) and offsets (%d) must be non-empty and equal length", len(kafkaPartitions), len(offsets))
	}
	for i := 1; i < len(kafkaPartitions); i++ {
		if kafkaPartitions[i] != kafkaPartitions[i-1]+1 {
			return LogFilePath{}, secerrors.NewInvariantViolation(
				"kafkaPartitions must be consecutive ascending, got %v", kafkaPartitions)
		}
	}
	return LogFilePath{
		Prefix:                   prefix,
		Topic:                    topic,
		Partitions:               append([]string(nil), partitions...),
		Generation:               generation,
		KafkaPartitions:          append([]int32(nil), kafkaPartitions...),
		Offsets:                  append([]int64(nil), offsets...),
		Extension:                extension,
		MessageChannelIdentifier: channelID,
	}, nil
}

// WithPrefix returns a copy of p rooted at a different prefix. LogFilePath
// itself is immutable once constructed (spec.md §3); this is how the same
// logical path is rendered against both the local staging root and the
// remote object-store root without mutating either value.
func (p LogFilePath) WithPrefix(prefix string) LogFilePath {
	clone := p
	clone.Prefix = prefix
	return clone
}

// basename builds the compatibility-critical filename stem per spec.md
// §4.1/§6. The multi-kafkaPartition form hashes the decimal concatenation
// of offsets without a separator, which risks collisions between
// different offset sequences that happen to concatenate to the same
// string (spec.md §9 Open Question (a)). This is reproduced as specified
// because the format is compatibility-critical; it is not silently
// "fixed" with a separator.
func (p LogFilePath) basename() string {
	if len(p.KafkaPartitions) == 1 {
		return fmt.Sprintf("%d_%d_%020d", p.Generation, p.KafkaPartitions[0], p.Offsets[0])
	}

	var decimal strings.Builder
	for _, off := range p.Offsets {
		decimal.WriteString(strconv.FormatInt(off, 10))
	}
	sum := md5.Sum([]byte(decimal.String()))
	digest := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])

	first, last := p.KafkaPartitions[0], p.KafkaPartitions[len(p.KafkaPartitions)-1]
	return fmt.Sprintf("%d_%d-%d_%s", p.Generation, first, last, digest)
}

// Render returns the full remote/local path for this LogFilePath. With no
// Pattern set, it is "{prefix}/{topic}/{partitions...}/{basename}{ext}".
// With a Pattern, recognized placeholders are substituted and the result
// is rendered under prefix.
func (p LogFilePath) Render() string {
	if p.Pattern == "" {
		segments := append([]string{p.Prefix, p.Topic}, p.Partitions...)
		segments = append(segments, p.basename()+p.Extension)
		return strings.Join(segments, "/")
	}

	now := Now()
	channelID := ""
	if len(p.MessageChannelIdentifier) > 0 {
		channelID = p.MessageChannelIdentifier[0]
	}
	partition := ""
	if len(p.Partitions) > 0 {
		partition = p.Partitions[0]
	}

	replacer := strings.NewReplacer(
		"{topic}", p.Topic,
		"{partition}", partition,
		"{generation}", strconv.Itoa(p.Generation),
		"{kafkaPartition}", strconv.Itoa(int(p.KafkaPartitions[0])),
		"{fmOffset}", fmt.Sprintf("%020d", p.Offsets[0]),
		"{randomHex}", RandomHex(),
		"{currentTimestamp}", strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 10),
		"{currentTime}", now.Format("15-04"),
		"{currentDate}", now.Format("20060102"),
		"{message_channel_identifier}", channelID,
	)

	return p.Prefix + "/" + replacer.Replace(p.Pattern) + p.Extension
}

// CRCPath returns the sidecar checksum path: same directory, basename
// prefixed with "." and suffixed with ".crc", no extension.
func (p LogFilePath) CRCPath() string {
	segments := append([]string{p.Prefix, p.Topic}, p.Partitions...)
	segments = append(segments, "."+p.basename()+".crc")
	return strings.Join(segments, "/")
}

// Parse strips prefix from fullPath and reconstructs a LogFilePath. Only
// the single-kafkaPartition basename form is round-trippable (spec.md §9
// Open Question (b)); a multi-kafkaPartition basename is rejected with
// MalformedPathError rather than attempting a lossy reverse-parse.
func Parse(prefix, fullPath string) (LogFilePath, error) {
	trimmed := strings.TrimPrefix(fullPath, prefix)
	trimmed = strings.TrimPrefix(trimmed, "/")
	segments := strings.Split(trimmed, "/")
	if len(segments) < 3 {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, fmt.Errorf("expected at least topic/partition/basename, got %d segments", len(segments)))
	}

	topic := segments[0]
	partitions := segments[1 : len(segments)-1]
	last := segments[len(segments)-1]

	ext := path.Ext(last)
	base := strings.TrimSuffix(last, ext)

	fields := strings.Split(base, "_")
	if len(fields) != 3 {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, fmt.Errorf("basename %q does not split into 3 underscore-delimited fields", base))
	}

	generation, err := strconv.Atoi(fields[0])
	if err != nil {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, err)
	}
	if strings.Contains(fields[1], "-") {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, fmt.Errorf("multi-kafkaPartition basename %q is not round-trip-safe, rejecting on parse", base))
	}
	kp, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, err)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return LogFilePath{}, secerrors.NewMalformedPathError(fullPath, err)
	}

	return LogFilePath{
		Prefix:          prefix,
		Topic:           topic,
		Partitions:      append([]string(nil), partitions...),
		Generation:      generation,
		KafkaPartitions: []int32{int32(kp)},
		Offsets:         []int64{offset},
		Extension:       ext,
	}, nil
}
