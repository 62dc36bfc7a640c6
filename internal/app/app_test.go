package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/internal/filing/filingtest"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/transport"
	"rrfiler/internal/platform/config"
	"rrfiler/pkg/requestcontext"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeRecords(t *testing.T, recs ...*models.TransactionRecord) string {
	t.Helper()
	raw, err := json.Marshal(recs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestServiceConfig(t *testing.T) {
	f := config.Default().Filing
	f.PollConcurrency = 3
	f.Transmitter = config.Transmitter{
		TIN:          "12-3456789",
		AccountID:    "ACME01",
		ContactEmail: "ops@acme.test",
		Address:      config.TransmitterAddress{Street: "1 Filing Way", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
	}

	cfg := ServiceConfig(f)
	assert.Equal(t, f.PollBackoff, cfg.PollBackoff)
	assert.Equal(t, 24*time.Hour, cfg.NoResponseAfter)
	assert.Equal(t, 3, cfg.PollConcurrency)
	assert.Equal(t, "12-3456789", cfg.Transmitter.TIN)
	assert.Equal(t, "ops@acme.test", cfg.Transmitter.Contact.Email)
	assert.Equal(t, "Austin", cfg.Transmitter.Address.City)
	assert.True(t, cfg.Transmitter.Address.Complete())
	assert.Equal(t, 10*time.Second, cfg.LockWait)
}

func TestNewRecordSource(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		_, err := NewRecordSource(config.Records{})
		assert.Error(t, err)
	})

	t.Run("json file", func(t *testing.T) {
		src, err := NewRecordSource(config.Records{File: writeRecords(t, filingtest.ValidRecord("txn-1"))})
		require.NoError(t, err)
		rec, err := src.Get(context.Background(), "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "ACME01", rec.Transmitter.AccountID)
	})
}

func TestNewTransport(t *testing.T) {
	t.Run("sandbox without host uses memory host", func(t *testing.T) {
		cfg := config.Default()
		client, err := NewTransport(cfg, nil, discard())
		require.NoError(t, err)
		_, ok := client.(*transport.Guarded)
		assert.True(t, ok)
	})

	t.Run("production without host fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.Filing.Environment = config.EnvProduction
		_, err := NewTransport(cfg, nil, discard())
		assert.Error(t, err)
	})

	t.Run("unreadable private key fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.SFTP.Sandbox = config.SFTPCredentials{Host: "sftp.sandbox.test", User: "acme", PrivateKeyPath: filepath.Join(t.TempDir(), "missing")}
		_, err := NewTransport(cfg, nil, discard())
		assert.Error(t, err)
	})
}

func TestBuild_InMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Records.File = writeRecords(t, filingtest.ValidRecord("txn-1"))

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Relay)

	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC))
	sub, err := a.Service.Submit(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, sub.Status)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rrfiler_submission_transitions_total")
	assert.Contains(t, names, "rrfiler_audit_compliance_emitted_total")
}
