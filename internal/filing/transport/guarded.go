package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rrfiler/pkg/platform/circuit"
)

// ErrCircuitOpen is wrapped by calls refused while the breaker is open.
var ErrCircuitOpen = errors.New("transfer host circuit open")

// Recorder receives one observation per operation. failureCategory is empty
// on success.
type Recorder interface {
	ObserveTransport(op string, d time.Duration, failureCategory string)
}

// Guarded decorates a Client with a circuit breaker and per-operation
// metrics. Missing files and upload conflicts prove the host is reachable
// and count as successes for the breaker.
type Guarded struct {
	next     Client
	breaker  *circuit.Breaker
	recorder Recorder
	logger   *slog.Logger
}

// NewGuarded wraps next. breaker and recorder may be nil.
func NewGuarded(next Client, breaker *circuit.Breaker, recorder Recorder, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, recorder: recorder, logger: logger}
}

func (g *Guarded) Upload(ctx context.Context, dir, name string, data []byte) error {
	return g.call(ctx, OpUpload, joinPath(dir, name), func() error {
		return g.next.Upload(ctx, dir, name, data)
	})
}

func (g *Guarded) Download(ctx context.Context, dir, name string) ([]byte, error) {
	var data []byte
	err := g.call(ctx, OpDownload, joinPath(dir, name), func() error {
		var err error
		data, err = g.next.Download(ctx, dir, name)
		return err
	})
	return data, err
}

func (g *Guarded) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := g.call(ctx, OpList, dir, func() error {
		var err error
		names, err = g.next.List(ctx, dir)
		return err
	})
	return names, err
}

func (g *Guarded) call(ctx context.Context, op, p string, fn func() error) error {
	if g.breaker != nil && !g.breaker.Allow() {
		err := NewError(CategoryUnavailable, op, p, ErrCircuitOpen)
		g.observe(op, 0, err)
		return err
	}

	start := time.Now()
	err := fn()
	g.observe(op, time.Since(start), err)

	if g.breaker == nil {
		return err
	}
	if err != nil && countsAsOutage(err) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "transfer host circuit opened",
				"breaker", g.breaker.Name(),
				"op", op,
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "transfer host circuit closed", "breaker", g.breaker.Name())
	}
	return err
}

func (g *Guarded) observe(op string, d time.Duration, err error) {
	if g.recorder == nil {
		return
	}
	category := ""
	if err != nil {
		category = string(GetCategory(err))
	}
	g.recorder.ObserveTransport(op, d, category)
}
