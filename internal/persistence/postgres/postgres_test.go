package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/persistence/storetest"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to ADVISING_TEST_POSTGRES_DSN and empties every table.
// Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("ADVISING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ADVISING_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	_, err = store.Pool().Exec(ctx, `TRUNCATE weekly_slots, leave_periods, meetings, ban_counters`)
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStore(t)
	})
}
