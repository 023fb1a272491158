package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRecord_EncodeIncludesID(t *testing.T) {
	rec := &Record{ID: "abc", Data: map[string]any{"user": "alice"}}

	data, err := rec.encode()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, "alice", m["user"])
}

func TestRecord_DecodeSplitsID(t *testing.T) {
	rec, err := decodeRecord([]byte("id: abc\nuser: alice\ncount: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, map[string]any{"user": "alice", "count": 3}, rec.Data)
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := &Record{
		ID: "abc",
		Data: map[string]any{
			"user":  "alice",
			"count": 3,
			"tags":  []any{"a", "b"},
			"prefs": map[string]any{"theme": "dark"},
		},
	}

	data, err := rec.encode()
	require.NoError(t, err)

	got, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Data, got.Data)
}

func TestRecord_DecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"broken flow mapping", "{invalid: ["},
		{"scalar instead of mapping", "just a string"},
		{"sequence instead of mapping", "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRecord([]byte(tt.in))
			assert.ErrorIs(t, err, ErrDeserialize)
		})
	}
}
