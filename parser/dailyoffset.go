package parser

import (
	"fmt"
	"time"

	"github.com/trivago/secorgo/model"
)

// Now is overridden in tests so the "always now" dt= partition is
// deterministic (spec.md §8 scenario S3).
var Now = time.Now

// DailyOffset buckets messages purely by Kafka offset, for topics that
// carry no embedded timestamp at all. The message-processing instant
// ("now") supplies the date partition and the offset bucket supplies a
// second partition, together bounding how many records land under one
// date directory for topics with no embedded timestamp.
type DailyOffset struct {
	messagesPerPartition int64
	dateLayout           string
}

func NewDailyOffset(o Options) *DailyOffset {
	n := o.MessagesPerPartition
	if n <= 0 {
		n = 1_000_000
	}
	layout := o.TimestampLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	return &DailyOffset{messagesPerPartition: n, dateLayout: layout}
}

// ExtractPartitions never fails: every message gets a partition.
func (p *DailyOffset) ExtractPartitions(msg model.Message) ([]string, error) {
	bucket := (msg.Offset / p.messagesPerPartition) * p.messagesPerPartition
	return []string{
		"dt=" + Now().Format(p.dateLayout),
		fmt.Sprintf("offset=%d", bucket),
	}, nil
}
