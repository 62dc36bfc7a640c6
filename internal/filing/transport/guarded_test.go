package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/pkg/platform/circuit"
)

type recordedOp struct {
	op       string
	category string
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *fakeRecorder) ObserveTransport(op string, _ time.Duration, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{op: op, category: category})
}

func TestGuarded_OpensAfterRepeatedOutages(t *testing.T) {
	mem := NewMemoryClient()
	mem.SetFailure(OpDownload, NewError(CategoryConnection, OpDownload, "", errors.New("connection reset")))
	breaker := circuit.New("transfer-host", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	g := NewGuarded(mem, breaker, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Download(ctx, "acknowledgements", "x.ACKED")
		require.Error(t, err)
	}
	assert.Equal(t, circuit.StateOpen, breaker.State())

	_, err := g.Download(ctx, "acknowledgements", "x.ACKED")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, CategoryUnavailable, GetCategory(err))
	assert.Equal(t, 2, mem.Calls(OpDownload), "open circuit short-circuits the host")
}

func TestGuarded_MissingFilesDoNotTrip(t *testing.T) {
	mem := NewMemoryClient()
	breaker := circuit.New("transfer-host", circuit.WithFailureThreshold(1))
	rec := &fakeRecorder{}
	g := NewGuarded(mem, breaker, rec, nil)

	_, err := g.Download(context.Background(), "acknowledgements", "absent.ACKED")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, circuit.StateClosed, breaker.State())
	assert.Equal(t, []recordedOp{{op: OpDownload, category: string(CategoryNotFound)}}, rec.ops)
}

func TestGuarded_PassesThrough(t *testing.T) {
	mem := NewMemoryClient()
	rec := &fakeRecorder{}
	g := NewGuarded(mem, nil, rec, nil)
	ctx := context.Background()

	require.NoError(t, g.Upload(ctx, "submissions", "a.xml", []byte("a")))
	data, err := g.Download(ctx, "submissions", "a.xml")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	names, err := g.List(ctx, "submissions")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml"}, names)
	assert.Len(t, rec.ops, 3)
	for _, op := range rec.ops {
		assert.Empty(t, op.category)
	}
}
