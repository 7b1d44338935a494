package repository

import (
	"context"
	"testing"

	"impex-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := models.NewRecord()
	rec.ID = "r1"
	rec.Set("name", "Widgets")
	rec.Set("productIds", []string{"p1"})

	_, err := store.Save(ctx, rec)
	require.NoError(t, err)

	// stored copies are isolated from the caller
	rec.Strings("productIds")[0] = "changed"
	got, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got.Strings("productIds"))

	got.Set("name", "Other")
	again, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Widgets", again.String("name"))

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, store.Delete(ctx, rec))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Delete(ctx, rec), ErrRecordNotFound)
}

func TestMemoryStore_SaveAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, b := models.NewRecord(), models.NewRecord()
	a.ID, b.ID = "a", "b"

	saved, err := store.SaveAll(ctx, []*models.Record{a, b})
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	assert.Equal(t, 2, store.Len())

	_, err = store.SaveAll(ctx, []*models.Record{models.NewRecord()})
	assert.Error(t, err)
	assert.Equal(t, 2, store.Len())
}
