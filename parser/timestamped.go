package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/trivago/tgo/tcontainer"

	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/secerrors"
)

// Timestamped extracts a millisecond epoch value from a JSON payload
// field and formats it into the partition path. Grounded on
// format/tojson.go's use of tcontainer.MarshalMap/ConvertToMarshalMap
// for dotted-path metadata lookups.
type Timestamped struct {
	field  []string
	layout string
}

func NewTimestamped(o Options) (*Timestamped, error) {
	if o.TimestampField == "" {
		return nil, secerrors.NewConfigError("TimestampField", errors.New("required for the timestamped parser"))
	}
	layout := o.TimestampLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	return &Timestamped{field: strings.Split(o.TimestampField, "."), layout: layout}, nil
}

func (p *Timestamped) ExtractTimestampMillis(msg model.Message) (int64, bool, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		return 0, false, secerrors.NewParseError(msg.Topic, err)
	}

	mm := tcontainer.NewMarshalMap()
	for k, v := range decoded {
		mm[k] = v
	}

	val, exists := mm.Value(strings.Join(p.field, "/"))
	if !exists {
		return 0, false, nil
	}

	switch n := val.(type) {
	case float64:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, secerrors.NewParseError(msg.Topic, err)
		}
		return i, true, nil
	default:
		return 0, false, secerrors.NewParseError(msg.Topic, errors.Errorf("field %q is not numeric (%T)", p.field, val))
	}
}

func (p *Timestamped) ExtractPartitions(msg model.Message) ([]string, error) {
	millis, ok, err := p.ExtractTimestampMillis(msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, secerrors.NewParseError(msg.Topic, errors.Errorf("timestamp field not present in message"))
	}
	t := time.Unix(0, millis*int64(time.Millisecond)).UTC()
	return []string{t.Format(p.layout)}, nil
}
