package services_test

import (
	"context"
	"os"
	"testing"
	"time"

	"checkout-service/models"
	"checkout-service/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis; set REDIS_TEST_ADDR (e.g. localhost:6379).
func TestRedisImportReportStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	store := services.NewRedisImportReportStore(client, time.Minute)
	report := &models.ImportReport{
		ID:       uuid.NewString(),
		FilePath: "data/checkouts.csv",
		Imported: 2,
		Skipped:  1,
		Errors:   []string{"Row 3: missing value for column email"},
	}
	require.NoError(t, store.Save(context.Background(), report))

	got, err := store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report, got)

	ttl, err := client.TTL(context.Background(), "checkout_import:report:"+report.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, err = store.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, services.ErrReportNotFound)
}
