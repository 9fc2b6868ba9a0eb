//go:build integration

package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRecordRepository_Integration(t *testing.T) {
	dsn := os.Getenv("PERSONNEL_TEST_DSN")
	if dsn == "" {
		t.Skip("PERSONNEL_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	require.NoError(t, Migrate(ctx, pool, logrus.NewEntry(logger)))

	statuses, err := MigrationStatuses(ctx, pool)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		require.True(t, s.Applied)
	}

	orgID := "it-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM provisioning_records WHERE org_id = $1`, orgID)
	})

	testRepositoryContract(t, NewRecordRepository(pool), orgID)
}
