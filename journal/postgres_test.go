package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to SCALPER_TEST_POSTGRES_DSN and empties the
// journal tables. The test is skipped when the variable is unset.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	dsn := os.Getenv("SCALPER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCALPER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE positions, trades`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore(t *testing.T) {
	exerciseStore(t, newTestPostgres(t))
}

func TestCachedStore(t *testing.T) {
	url := os.Getenv("SCALPER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SCALPER_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewCached(NewMemory(), rdb, time.Minute)
	c.prefix = "scalper-test-" + time.Now().Format("150405.000000")
	exerciseStore(t, c)
}
