package sqlstore

import (
	"context"
	"testing"
	"time"

	"ecoleta/models"
	"ecoleta/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalog = []models.Item{
	{ID: 1, Title: "Lâmpadas", Image: "lampadas.svg"},
	{ID: 2, Title: "Pilhas e Baterias", Image: "baterias.svg"},
	{ID: 3, Title: "Papéis e Papelão", Image: "papeis-papelao.svg"},
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.SeedItems(ctx, catalog))
	return s
}

func countLinks(t *testing.T, s *Store, pointID int64) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM point_items WHERE point_id = ?`, pointID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestSeedItemsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	renamed := []models.Item{{ID: 1, Title: "Lâmpadas fluorescentes", Image: "lampadas.svg"}}
	require.NoError(t, s.SeedItems(ctx, renamed))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Lâmpadas fluorescentes", items[0].Title)
	assert.Equal(t, []int64{1, 2, 3}, []int64{items[0].ID, items[1].ID, items[2].ID})
}

func TestCreatePointStoresAssociations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Point{
		Image: models.DefaultPointImage, Name: "Coop X", Email: "x@x.com", Whatsapp: "119999",
		Latitude: -23.5, Longitude: -46.6, UF: "SP", City: "Osasco",
	}
	require.NoError(t, s.CreatePoint(ctx, p, []int64{1, 3, 3}))
	assert.NotZero(t, p.ID)
	assert.Equal(t, []int64{1, 3}, p.Items)
	assert.Equal(t, 2, countLinks(t, s, p.ID))

	got, err := s.GetPoint(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coop X", got.Name)
	assert.Equal(t, -23.5, got.Latitude)
	assert.Equal(t, -46.6, got.Longitude)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt), "%v != %v", p.CreatedAt, got.CreatedAt)
	assert.Zero(t, p.CreatedAt.Nanosecond()%int(time.Millisecond))

	items, err := s.PointItems(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, int64(3), items[1].ID)
}

func TestCreatePointUnknownItemWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Point{Name: "Bad", UF: "SP", City: "Osasco"}
	err := s.CreatePoint(ctx, p, []int64{1, 99})
	assert.ErrorIs(t, err, storage.ErrUnknownItem)

	points, err := s.ListPoints(ctx, models.PointFilter{})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestGetPointNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPoint(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListPointsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	create := func(name, uf, city string, items ...int64) int64 {
		p := &models.Point{Name: name, UF: uf, City: city}
		require.NoError(t, s.CreatePoint(ctx, p, items))
		return p.ID
	}
	a := create("A", "SP", "Osasco", 1, 2)
	b := create("B", "SP", "Osasco", 3)
	c := create("C", "RJ", "Niterói", 1)

	ids := func(points []models.Point) []int64 {
		out := []int64{}
		for _, p := range points {
			out = append(out, p.ID)
		}
		return out
	}

	all, err := s.ListPoints(ctx, models.PointFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b, c}, ids(all))

	sp, err := s.ListPoints(ctx, models.PointFilter{UF: "SP", City: "Osasco"})
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, ids(sp))

	// Points carrying any of the items appear once.
	anyOf, err := s.ListPoints(ctx, models.PointFilter{Items: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int64{a, c}, ids(anyOf))

	combined, err := s.ListPoints(ctx, models.PointFilter{UF: "SP", Items: []int64{3}})
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, ids(combined))
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", s.rebind("a = ? AND b IN ("+placeholders(2)+")"))

	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
