package warmup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cache"
	"storefront/internal/storage"
	"storefront/internal/storage/sqlstore"
)

func seed(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.CreateCategory(ctx, storage.CategoryInput{Name: "Lighting"})
	require.NoError(t, err)
	for _, name := range []string{"lamp", "chair"} {
		_, err := s.CreateProduct(ctx, storage.ProductInput{
			Name: name, Description: name, Brand: "b", CategoryID: "c",
			Price: 10, CountInStock: 1, ImageURL: "/img", IsBestSeller: name == "lamp",
		})
		require.NoError(t, err)
	}
	return s
}

func TestWarmer_Run(t *testing.T) {
	store := seed(t)
	coord := cache.NewCoordinator(cache.NewStore(100), nil)
	ctx := context.Background()

	result, err := New(store, coord, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Categories)
	assert.Equal(t, 2, result.Popular)
	assert.Equal(t, 2, result.Recent)
	assert.Equal(t, 1, result.BestSellers)
	assert.Len(t, result.Keys, 6)

	for _, key := range []string{"categories:all", "products:popular", "products:recent", "products:bestsellers"} {
		assert.True(t, coord.Local().Has(key), key)
	}

	var popular []*storage.Product
	require.True(t, coord.GetJSON(ctx, "products:popular", &popular))
	require.Len(t, popular, 2)
	assert.True(t, coord.Local().Has("products:single:"+popular[0].ID))
}

func TestWarmer_RunStorageError(t *testing.T) {
	store := seed(t)
	require.NoError(t, store.Close())

	_, err := New(store, cache.NewCoordinator(nil, nil), nil).Run(context.Background())
	assert.Error(t, err)
}

func TestWarmer_SingleProductMatchesGetProduct(t *testing.T) {
	store := seed(t)
	coord := cache.NewCoordinator(cache.NewStore(100), nil)
	ctx := context.Background()

	page, err := store.ListProducts(ctx, storage.ProductFilter{Keyword: "lamp"}.Normalize())
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	id := page.Products[0].ID
	_, err = store.AddReview(ctx, id, storage.ReviewInput{Name: "Ana", Rating: 5, Comment: "Bright"})
	require.NoError(t, err)

	_, err = New(store, coord, nil).Run(ctx)
	require.NoError(t, err)

	want, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Len(t, want.Reviews, 1)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	cached, ok := coord.Get(ctx, "products:single:"+id)
	require.True(t, ok)
	assert.JSONEq(t, string(wantJSON), string(cached))
}
