package cache

import (
	"context"
	"testing"

	"ecoleta/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNilCacheAlwaysMisses(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.SetItems(ctx, []models.Item{{ID: 1}})
	_, ok := c.Items(ctx)
	assert.False(t, ok)
	_, ok = c.PointDetail(ctx, 1)
	assert.False(t, ok)
	c.InvalidateItems(ctx)
}

func TestItemsRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	c := New(client)
	ctx := context.Background()

	items := []models.Item{{ID: 1, Title: "Lâmpadas", ImageURL: "http://x/uploads/lampadas.svg"}}
	c.SetItems(ctx, items)
	assert.True(t, mr.Exists(itemsKey))

	got, ok := c.Items(ctx)
	require.True(t, ok)
	assert.Equal(t, items[0].Title, got[0].Title)
	assert.Equal(t, items[0].ImageURL, got[0].ImageURL)

	c.InvalidateItems(ctx)
	_, ok = c.Items(ctx)
	assert.False(t, ok)
}

func TestPointDetailExpires(t *testing.T) {
	mr, client := newRedis(t)
	c := New(client)
	ctx := context.Background()

	c.SetPointDetail(ctx, models.PointDetail{Point: models.Point{ID: 7, Name: "Coop X"}})
	got, ok := c.PointDetail(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, "Coop X", got.Point.Name)

	mr.FastForward(pointTTL + 1)
	_, ok = c.PointDetail(ctx, 7)
	assert.False(t, ok)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	mr, client := newRedis(t)
	c := New(client)
	require.NoError(t, mr.Set(itemsKey, "{not json"))

	_, ok := c.Items(context.Background())
	assert.False(t, ok)
}
