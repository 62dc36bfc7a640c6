package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/internal/app"
	"rrfiler/internal/filing/filingtest"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/platform/config"
)

// testEnv shares one in-memory app across commands so state survives
// between invocations. The loaded config names a database so stateful
// commands run; build never dials it.
func testEnv(t *testing.T) env {
	t.Helper()
	noTIN := filingtest.ValidRecord("txn-no-tin")
	noTIN.Transmitter.TIN = ""
	raw, err := json.Marshal([]*models.TransactionRecord{filingtest.ValidRecord("txn-1"), noTIN})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := config.Default()
	cfg.Records.File = path
	shared, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(shared.Close)

	loaded := *cfg
	loaded.Database.DSN = "postgres://rrfiler@localhost/rrfiler"
	return env{
		loadConfig: func() (*config.Config, error) { return &loaded, nil },
		build: func(context.Context, *config.Config, *slog.Logger) (*app.App, error) {
			return shared, nil
		},
		stderr: io.Discard,
	}
}

func execute(e env, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(e)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommands(t *testing.T) {
	e := testEnv(t)

	out, _, err := execute(e, "submit", "txn-1", "--operator", "ops@acme")
	require.NoError(t, err)
	var sub models.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.Equal(t, models.StatusSubmitted, sub.Status)

	out, _, err = execute(e, "status", "txn-1")
	require.NoError(t, err)
	var status struct {
		Submission models.Submission      `json:"submission"`
		Attempts   []models.AttemptRecord `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, sub.ID, status.Submission.ID)
	assert.Len(t, status.Attempts, 1)

	out, _, err = execute(e, "poll")
	require.NoError(t, err)
	assert.Contains(t, out, `"due": 0`)

	out, _, err = execute(e, "poll", "--id", sub.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "submitted"`)

	_, _, err = execute(e, "retry", sub.ID.String())
	assert.Error(t, err, "a submitted filing cannot be retried")
}

func TestSubmitPrintsPreflightReasons(t *testing.T) {
	e := testEnv(t)

	out, errOut, err := execute(e, "submit", "txn-no-tin")
	require.Error(t, err)
	assert.Contains(t, out, `"status": "needs_review"`)
	assert.NotEmpty(t, errOut)
}

func TestArgumentValidation(t *testing.T) {
	e := testEnv(t)

	_, _, err := execute(e, "retry", "not-a-uuid")
	assert.Error(t, err)

	_, _, err = execute(e, "submit")
	assert.Error(t, err)
}

func TestStatefulCommandsRequireDatabase(t *testing.T) {
	e := testEnv(t)
	e.loadConfig = func() (*config.Config, error) {
		cfg := config.Default()
		cfg.Records.File = "records.json"
		return cfg, nil
	}

	for _, args := range [][]string{
		{"poll"},
		{"poll", "--id", "0b1c6f1e-7d38-4a43-9d0f-6f2f0a6f4f11"},
		{"retry", "0b1c6f1e-7d38-4a43-9d0f-6f2f0a6f4f11"},
		{"status", "txn-1"},
		{"migrate"},
	} {
		_, _, err := execute(e, args...)
		assert.ErrorIs(t, err, errNoDatabase, "%v", args)
	}

	out, _, err := execute(e, "submit", "txn-1")
	require.NoError(t, err, "a one-shot submit can run without a database")
	assert.Contains(t, out, `"status": "submitted"`)
}
