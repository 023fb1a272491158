package store

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Record is a single session: a unique id plus opaque caller-owned
// attributes. The store never interprets Data; it only serializes it.
type Record struct {
	ID   string
	Data map[string]any
}

// encode serializes the record as one flat YAML mapping: the data
// keys plus the reserved "id" key.
func (r *Record) encode() ([]byte, error) {
	m := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		m[k] = v
	}
	m["id"] = r.ID
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// decodeRecord parses serialized session bytes back into a Record,
// splitting the "id" key out of the attribute mapping.
func decodeRecord(data []byte) (*Record, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserialize, err)
	}

	rec := &Record{Data: make(map[string]any, len(m))}
	for k, v := range m {
		if k == "id" {
			if id, ok := v.(string); ok {
				rec.ID = id
			}
			continue
		}
		rec.Data[k] = v
	}
	return rec, nil
}
