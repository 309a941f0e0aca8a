// Package storage declares the persistence contract shared by the relational
// and MongoDB backends.
package storage

import (
	"context"
	"errors"

	"ecoleta/models"
)

var (
	// ErrNotFound is returned when a point id does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrUnknownItem is returned when a point references an item outside the catalog.
	ErrUnknownItem = errors.New("storage: unknown item")
)

// Store persists the item catalog, points and their item associations.
// Implementations are safe for concurrent use.
type Store interface {
	InitSchema(ctx context.Context) error
	// SeedItems upserts catalog rows by id.
	SeedItems(ctx context.Context, items []models.Item) error
	// ListItems returns the catalog ordered by id.
	ListItems(ctx context.Context) ([]models.Item, error)
	// CreatePoint assigns p.ID and stores p with one association per item id,
	// all or nothing.
	CreatePoint(ctx context.Context, p *models.Point, itemIDs []int64) error
	// ListPoints applies the City, UF and Items fields of filter; geographic
	// fields are ignored.
	ListPoints(ctx context.Context, filter models.PointFilter) ([]models.Point, error)
	GetPoint(ctx context.Context, id int64) (models.Point, error)
	// PointItems returns the catalog items linked to a point, ordered by id.
	PointItems(ctx context.Context, pointID int64) ([]models.Item, error)
	Ping(ctx context.Context) error
	Close() error
}

// DedupeIDs returns ids without duplicates, keeping first-seen order.
func DedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
