package cache

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 0.0001
	minChildren = 25
	maxChildren = 50
)

type treeEntry struct {
	pointID  int64
	lat, lon float64
	rect     *rtreego.Rect
}

func (e *treeEntry) Bounds() *rtreego.Rect {
	return e.rect
}

// TreeGeoIndex is the in-process R-tree used when Redis is not configured.
type TreeGeoIndex struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	entries map[int64]*treeEntry
}

func NewTreeGeoIndex() *TreeGeoIndex {
	return &TreeGeoIndex{
		tree:    rtreego.NewTree(2, minChildren, maxChildren),
		entries: make(map[int64]*treeEntry),
	}
}

// Add indexes a point, replacing any previous position of the same id.
func (g *TreeGeoIndex) Add(_ context.Context, pointID int64, lat, lon float64) error {
	entry := &treeEntry{
		pointID: pointID,
		lat:     lat,
		lon:     lon,
		rect:    rtreego.Point{lat, lon}.ToRect(tolerance),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.entries[pointID]; ok {
		g.tree.Delete(old)
	}
	g.tree.Insert(entry)
	g.entries[pointID] = entry
	return nil
}

// Nearby searches a bounding box around (lat, lon), split in two when it
// crosses the antimeridian, then keeps hits within radiusKm.
func (g *TreeGeoIndex) Nearby(_ context.Context, lat, lon, radiusKm float64) ([]Hit, error) {
	dLat := (radiusKm / earthRadius) * (180 / math.Pi)
	dLon := 180.0
	if c := math.Cos(lat * math.Pi / 180); c > 1e-6 {
		dLon = math.Min(dLat/c, 180)
	}

	var boxes []*rtreego.Rect
	for _, span := range lonSpans(lon, dLon) {
		bounds, err := rtreego.NewRect(
			rtreego.Point{lat - dLat, span[0]},
			[]float64{2 * dLat, math.Max(span[1]-span[0], tolerance)},
		)
		if err != nil {
			return nil, fmt.Errorf("invalid radius search: %w", err)
		}
		boxes = append(boxes, bounds)
	}

	seen := make(map[int64]bool)
	var hits []Hit

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, bounds := range boxes {
		for _, r := range g.tree.SearchIntersect(bounds) {
			entry, ok := r.(*treeEntry)
			if !ok || seen[entry.pointID] {
				continue
			}
			seen[entry.pointID] = true
			if d := HaversineKm(lat, lon, entry.lat, entry.lon); d <= radiusKm {
				hits = append(hits, Hit{PointID: entry.pointID, DistanceKm: d})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceKm < hits[j].DistanceKm })
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

// lonSpans returns the [min, max] longitude ranges covering lon ± dLon,
// wrapped into [-180, 180].
func lonSpans(lon, dLon float64) [][2]float64 {
	lo, hi := lon-dLon, lon+dLon
	switch {
	case dLon >= 180:
		return [][2]float64{{-180, 180}}
	case lo < -180:
		return [][2]float64{{lo + 360, 180}, {-180, hi}}
	case hi > 180:
		return [][2]float64{{lo, 180}, {-180, hi - 360}}
	default:
		return [][2]float64{{lo, hi}}
	}
}

func (g *TreeGeoIndex) Size(_ context.Context) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return int64(len(g.entries)), nil
}
