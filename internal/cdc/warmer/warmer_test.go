package warmer

import (
	"context"
	"os"
	"testing"

	"github.com/aaronwald/ssmd/internal/cdc/cache"
)

// TestWarmAllEmptyDatabase requires a live PostgreSQL reachable at
// SSMD_TEST_DATABASE_URL and Redis at SSMD_TEST_REDIS_URL; skipped
// otherwise. It exercises the empty-database boundary: warming a
// table with zero rows returns the current LSN and writes nothing.
func TestWarmAllEmptyDatabase(t *testing.T) {
	dbURL := os.Getenv("SSMD_TEST_DATABASE_URL")
	redisURL := os.Getenv("SSMD_TEST_REDIS_URL")
	if dbURL == "" || redisURL == "" {
		t.Skip("SSMD_TEST_DATABASE_URL / SSMD_TEST_REDIS_URL not set, skipping warmer integration test")
	}

	ctx := context.Background()
	w, err := Connect(ctx, Config{
		ConnectionURL: dbURL,
		Tables:        []TableConfig{{Table: "empty_secmaster_probe", PrimaryKey: "id"}},
	}, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	c, err := cache.New(redisURL)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer c.Close()

	snapshot, err := w.WarmAll(ctx, c)
	if err != nil {
		t.Fatalf("WarmAll: %v", err)
	}
	if snapshot == "" {
		t.Fatal("expected non-empty snapshot lsn")
	}
}
