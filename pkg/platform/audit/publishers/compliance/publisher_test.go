package compliance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/audit/store/memory"
	txcontext "rrfiler/pkg/platform/tx"
	"rrfiler/pkg/requestcontext"
)

func TestPublisher_EmitFillsDefaults(t *testing.T) {
	store := memory.NewInMemoryStore()
	fixed := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	pub := New(store)
	pub.now = func() time.Time { return fixed }

	ctx := requestcontext.WithRequestID(context.Background(), "req-7")
	ctx = requestcontext.WithActor(ctx, "scheduler")
	err := pub.Emit(ctx, audit.Event{
		Subject: "sub-1",
		Action:  string(audit.EventFilingSubmitted),
		From:    "queued",
		To:      "submitted",
	})
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, "req-7", events[0].RequestID)
	assert.Equal(t, "scheduler", events[0].ActorID)
}

func TestPublisher_CategoryDerivedFromAction(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject:  "sub-1",
		Action:   string(audit.EventPollRescheduled),
		Category: audit.CategoryCompliance,
	}))

	events, _ := store.ListAll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_FailClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	store.FailWith(errors.New("outbox unavailable"))
	pub := New(store)

	err := pub.Emit(context.Background(), audit.Event{Subject: "sub-1", Action: string(audit.EventFilingAccepted)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")
}

func TestPublisher_OperationsEventsAreBestEffort(t *testing.T) {
	store := memory.NewInMemoryStore()
	store.FailWith(errors.New("outbox unavailable"))
	pub := New(store)
	ev := audit.Event{Subject: "sub-1", Action: string(audit.EventPollRescheduled)}

	t.Run("outside a transaction the failure is dropped", func(t *testing.T) {
		assert.NoError(t, pub.Emit(context.Background(), ev))
	})

	t.Run("inside a transaction the failure is returned", func(t *testing.T) {
		ctx := txcontext.WithTx(context.Background(), &sql.Tx{})
		assert.ErrorContains(t, pub.Emit(ctx, ev), "outbox unavailable")
	})
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventFilingAccepted)})
	assert.ErrorIs(t, err, audit.ErrInvalidEvent)

	err = pub.Emit(context.Background(), audit.Event{Subject: "sub-1"})
	assert.ErrorIs(t, err, audit.ErrInvalidEvent)
}
