package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSubmissionID_Invariants validates that submission IDs are valid,
// non-empty, non-nil UUIDs.
func TestParseSubmissionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubmissionID("")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubmissionID("not-a-uuid")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSubmissionID(uuid.Nil.String())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSubmissionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SubmissionID(valid), id)
		assert.False(t, id.IsNil())
	})
}

func TestParseRecordID(t *testing.T) {
	t.Run("accepts opaque token", func(t *testing.T) {
		id, err := ParseRecordID("txn-2026-0042")
		require.NoError(t, err)
		assert.Equal(t, RecordID("txn-2026-0042"), id)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseRecordID("")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects whitespace", func(t *testing.T) {
		_, err := ParseRecordID("txn 42")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects oversized", func(t *testing.T) {
		_, err := ParseRecordID(strings.Repeat("a", 129))
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestSubmissionID_JSON(t *testing.T) {
	subID := NewSubmissionID()
	raw, err := json.Marshal(map[string]SubmissionID{"id": subID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+subID.String()+`"}`, string(raw))

	var decoded map[string]SubmissionID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, subID, decoded["id"])

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &decoded))
}
