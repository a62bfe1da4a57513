// Package config loads the secor.* key namespace (spec.md §6, plus the
// ambient keys SPEC_FULL.md §4.7 adds) from a flat YAML document and
// environment variable overrides. Grounded on the teacher's
// core/config.go (yaml.v2.Unmarshal into a generic value, then typed
// readers) and core/pluginconfigreader.go's GetString/GetInt/GetBool
// convenience-wrapper-over-errors pattern, generalized from
// per-plugin scoped config to one flat process-wide namespace since
// secor's keys (e.g. "secor.kafka.topic.filter") are already fully
// qualified.
package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/trivago/secorgo/secerrors"
)

// Config is a flat, read-only view over secor.* keys. Safe for
// concurrent reads after Load returns; never mutated afterward.
type Config struct {
	values map[string]interface{}
}

// Load reads path as YAML into a flat key/value map, then applies
// environment overrides: an env var SECOR_KAFKA_BROKERS overrides the
// key "secor.kafka.brokers" (lowercase, underscores to dots).
func Load(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, secerrors.NewConfigError(path, err)
	}

	values := make(map[string]interface{})
	if err := yaml.Unmarshal(buf, &values); err != nil {
		return nil, secerrors.NewConfigError(path, err)
	}

	applyEnvOverrides(values)
	return &Config{values: values}, nil
}

func applyEnvOverrides(values map[string]interface{}) {
	const prefix = "SECOR_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		key := strings.ToLower(strings.Replace(parts[0], "_", ".", -1))
		values[key] = parts[1]
	}
}

func (c *Config) raw(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the string value at key, or defaultValue if absent.
func (c *Config) GetString(key, defaultValue string) string {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	return toString(v)
}

// MustGetString returns the string value at key, or a *ConfigError if
// it is unset — for keys spec.md §6 marks mandatory (e.g.
// secor.kafka.topic.filter).
func (c *Config) MustGetString(key string) (string, error) {
	v, ok := c.raw(key)
	if !ok {
		return "", secerrors.NewConfigError(key, errMissingKey(key))
	}
	return toString(v), nil
}

// GetInt64 returns the integer value at key, or defaultValue if absent
// or not parseable as an integer.
func (c *Config) GetInt64(key string, defaultValue int64) int64 {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return defaultValue
		}
		return i
	default:
		return defaultValue
	}
}

// GetBool returns the boolean value at key, or defaultValue if absent or
// not parseable as a boolean.
func (c *Config) GetBool(key string, defaultValue bool) bool {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return defaultValue
		}
		return parsed
	default:
		return defaultValue
	}
}

// GetDuration returns the duration value at key parsed by
// time.ParseDuration (e.g. "30s", "5m"), or defaultValue if absent or
// unparseable.
func (c *Config) GetDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(toString(v))
	if err != nil {
		return defaultValue
	}
	return d
}

// GetStringSlice returns a list value at key. YAML sequences decode
// natively; a scalar string is treated as a single-element list, and a
// comma-separated string is split (for env-var overrides, which can
// only ever be strings).
func (c *Config) GetStringSlice(key string, defaultValue []string) []string {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	switch s := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, toString(item))
		}
		return out
	case []string:
		return s
	case string:
		if s == "" {
			return defaultValue
		}
		return strings.Split(s, ",")
	default:
		return defaultValue
	}
}

// GetStringMap returns a string-to-string map value at key — e.g. a YAML
// nested mapping, or a JSON object encoded as a string (the form secor's
// own secor.partition.prefix.mapping key takes) — or defaultValue if
// absent or of an unrecognized shape.
func (c *Config) GetStringMap(key string, defaultValue map[string]string) map[string]string {
	v, ok := c.raw(key)
	if !ok {
		return defaultValue
	}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]interface{}:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = toString(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[toString(k)] = toString(val)
		}
		return out
	case string:
		var decoded map[string]string
		if err := json.Unmarshal([]byte(m), &decoded); err != nil {
			return defaultValue
		}
		return decoded
	default:
		return defaultValue
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

type errMissingKey string

func (e errMissingKey) Error() string { return "required key not set: " + string(e) }
