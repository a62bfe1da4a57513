package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/trivago/grok"
	"github.com/trivago/tgo/tcontainer"

	"github.com/trivago/secorgo/model"
	"github.com/trivago/secorgo/secerrors"
)

const prefixMappingDefaultKey = "DEFAULT"

// PatternDate pulls a timestamp substring out of a non-JSON payload via
// a grok pattern and formats the result into the partition path, with an
// optional per-record prefix folder prepended. Grounded on
// format/grok.go's grok.New/Compile/ParseString usage and
// format/tojson.go's tcontainer.MarshalMap dotted-path lookups (reused
// here for the prefix identifier instead of the timestamp field).
type PatternDate struct {
	compiled      *grok.CompiledGrok
	captureField  string
	timeLayout    string
	partitionForm string

	prefixEnable     bool
	prefixIdentifier []string
	prefixMapping    map[string]string
}

func NewPatternDate(o Options) (*PatternDate, error) {
	if o.GrokPattern == "" || o.GrokTimestampField == "" {
		return nil, secerrors.NewConfigError("GrokPattern", errors.New("GrokPattern and GrokTimestampField are required for the patterndate parser"))
	}

	g, err := grok.New(grok.Config{RemoveEmptyValues: true, NamedCapturesOnly: true})
	if err != nil {
		return nil, secerrors.NewConfigError("GrokPattern", err)
	}
	compiled, err := g.Compile(o.GrokPattern)
	if err != nil {
		return nil, secerrors.NewConfigError("GrokPattern", err)
	}

	timeLayout := o.TimestampLayout
	if timeLayout == "" {
		timeLayout = time.RFC3339
	}
	partitionForm := "2006-01-02"

	p := &PatternDate{
		compiled:      compiled,
		captureField:  o.GrokTimestampField,
		timeLayout:    timeLayout,
		partitionForm: partitionForm,
	}

	if o.PrefixEnable {
		if o.PrefixIdentifier == "" {
			return nil, secerrors.NewConfigError("PrefixIdentifier", errors.New("required when PrefixEnable is set"))
		}
		if _, ok := o.PrefixMapping[prefixMappingDefaultKey]; !ok {
			return nil, secerrors.NewConfigError("PrefixMapping", errors.New("must contain a DEFAULT entry"))
		}
		p.prefixEnable = true
		p.prefixIdentifier = strings.Split(o.PrefixIdentifier, ".")
		p.prefixMapping = o.PrefixMapping
	}

	return p, nil
}

func (p *PatternDate) extractTime(msg model.Message) (time.Time, bool, error) {
	values := p.compiled.ParseString(string(msg.Payload))
	raw, ok := values[p.captureField]
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(p.timeLayout, raw)
	if err != nil {
		return time.Time{}, false, secerrors.NewParseError(msg.Topic, err)
	}
	return t, true, nil
}

// extractPrefix resolves the per-record prefix folder: the payload's
// PrefixIdentifier value is looked up in PrefixMapping, falling back to
// the mapping's DEFAULT entry when the identifier is absent from the
// payload or has no entry of its own.
func (p *PatternDate) extractPrefix(msg model.Message) (string, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		return p.prefixMapping[prefixMappingDefaultKey], nil
	}

	mm := tcontainer.NewMarshalMap()
	for k, v := range decoded {
		mm[k] = v
	}

	val, exists := mm.Value(strings.Join(p.prefixIdentifier, "/"))
	if !exists {
		return p.prefixMapping[prefixMappingDefaultKey], nil
	}

	key := fmt.Sprintf("%v", val)
	if folder, ok := p.prefixMapping[key]; ok {
		return folder, nil
	}
	return p.prefixMapping[prefixMappingDefaultKey], nil
}

func (p *PatternDate) ExtractTimestampMillis(msg model.Message) (int64, bool, error) {
	t, ok, err := p.extractTime(msg)
	if err != nil || !ok {
		return 0, ok, err
	}
	return t.UnixNano() / int64(time.Millisecond), true, nil
}

func (p *PatternDate) ExtractPartitions(msg model.Message) ([]string, error) {
	t, ok, err := p.extractTime(msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, secerrors.NewParseError(msg.Topic, errors.Errorf("pattern %q did not match payload", p.captureField))
	}

	partitions := []string{t.Format(p.partitionForm)}
	if p.prefixEnable {
		prefix, err := p.extractPrefix(msg)
		if err != nil {
			return nil, err
		}
		partitions = append([]string{prefix}, partitions...)
	}
	return partitions, nil
}
