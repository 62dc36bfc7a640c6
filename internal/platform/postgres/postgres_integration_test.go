//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/internal/platform/postgres"
	"rrfiler/pkg/testutil/containers"
)

func TestMigrateIsIdempotent(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	require.NoError(t, postgres.Migrate(pg.DB, nil))
	require.NoError(t, postgres.Migrate(pg.DB, nil))

	for _, table := range []string{"submissions", "submission_artifacts", "outbox"} {
		var exists bool
		err := pg.DB.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	assert.NoError(t, postgres.NewReadinessChecker(pg.DB).Check(context.Background()))
}
