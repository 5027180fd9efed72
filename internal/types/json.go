package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap models the free-form dicts the source system uses for card
// payloads, drives, and metadata (spec.md §9 design note): kept as an
// opaque JSON value at the storage boundary, parsed per-kind by callers
// that know the schema for a given card kind.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return errors.New("JSONMap: unsupported scan type")
		}
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// JSONStringSlice is the jsonb-backed []string column type (tags, memory ids).
type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (s *JSONStringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = JSONStringSlice{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			b = []byte(str)
		} else {
			return errors.New("JSONStringSlice: unsupported scan type")
		}
	}
	if len(b) == 0 {
		*s = JSONStringSlice{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// ValueCounts is the payload.value_counts histogram (string -> int).
type ValueCounts map[string]int

func (v ValueCounts) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func (v *ValueCounts) Scan(value interface{}) error {
	if value == nil {
		*v = ValueCounts{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return errors.New("ValueCounts: unsupported scan type")
		}
	}
	if len(b) == 0 {
		*v = ValueCounts{}
		return nil
	}
	return json.Unmarshal(b, v)
}
