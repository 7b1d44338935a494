package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func sampleReturnOrder() *models.Record {
	rec := schema.NewReturnOrder().NewRecord()
	rec.ID = "ro-1"
	rec.Set("name", "Blue mug")
	rec.Set("grandTotalAmount", 120.5)
	rec.Set("totalProductCount", 3)
	rec.Set("active", true)
	rec.Set("type", []string{"REFUND", "EXCHANGE"})
	rec.Set("createdOn", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	return rec
}

func TestCachedStore_PassThroughWithoutRedis(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewCachedStore(inner, nil, schema.NewReturnOrder(), 0, testEntry())

	_, err := store.Save(ctx, sampleReturnOrder())
	require.NoError(t, err)

	got, err := store.FindByID(ctx, "ro-1")
	require.NoError(t, err)
	assert.Equal(t, "Blue mug", got.String("name"))

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, store.Delete(ctx, got))
	assert.Equal(t, 0, inner.Len())
}

func TestCachedStore_UnreachableRedisFallsBackToInner(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	inner := NewMemoryStore()
	store := NewCachedStore(inner, client, schema.NewReturnOrder(), time.Minute, testEntry())

	saved, err := store.SaveAll(ctx, []*models.Record{sampleReturnOrder()})
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	got, err := store.FindByID(ctx, "ro-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Int("totalProductCount"))
}

func TestCachedStore_DecodeRoundTrip(t *testing.T) {
	store := NewCachedStore(NewMemoryStore(), nil, schema.NewReturnOrder(), 0, testEntry())
	rec := sampleReturnOrder()

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	got, err := store.decode(data)
	require.NoError(t, err)

	assert.Equal(t, "ro-1", got.ID)
	assert.Equal(t, "Blue mug", got.String("name"))
	assert.Equal(t, 120.5, got.Float("grandTotalAmount"))
	assert.Equal(t, 3, got.Int("totalProductCount"))
	assert.True(t, got.Bool("active"))
	assert.Equal(t, []string{"REFUND", "EXCHANGE"}, got.Strings("type"))
	assert.True(t, got.Time("createdOn").Equal(rec.Time("createdOn")))
	assert.True(t, got.Time("lastModifiedOn").IsZero())
}

func TestCachedStore_CacheKey(t *testing.T) {
	store := NewCachedStore(NewMemoryStore(), nil, schema.NewCategory(), 0, testEntry())
	assert.Equal(t, "impex:product_categories:record:c1", store.cacheKey("c1"))
	assert.Equal(t, DefaultRecordCacheTTL, store.ttl)
}
