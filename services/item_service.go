package services

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"ecoleta/cache"
	"ecoleta/data"
	"ecoleta/models"
	"ecoleta/storage"
	"ecoleta/utils/errors"

	"gopkg.in/yaml.v3"
)

type ItemService struct {
	store     storage.Store
	cache     *cache.Cache
	publicURL string
}

func NewItemService(store storage.Store, c *cache.Cache, publicURL string) *ItemService {
	return &ItemService{store: store, cache: c, publicURL: publicURL}
}

// ListItems returns the whole catalog with absolute image URLs.
func (s *ItemService) ListItems(ctx context.Context) ([]models.Item, error) {
	if items, ok := s.cache.Items(ctx); ok {
		return items, nil
	}

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "Failed to list items", http.StatusInternalServerError)
	}
	for i := range items {
		items[i].ImageURL = imageURL(s.publicURL, items[i].Image)
	}

	s.cache.SetItems(ctx, items)
	return items, nil
}

// Seed upserts the catalog and drops the cached copy.
func (s *ItemService) Seed(ctx context.Context, items []models.Item) error {
	if err := s.store.SeedItems(ctx, items); err != nil {
		return err
	}
	s.cache.InvalidateItems(ctx)
	return nil
}

// LoadCatalog reads a YAML item list from path, or the embedded default
// catalog when path is empty or does not exist.
func LoadCatalog(path string) ([]models.Item, error) {
	raw := data.ItemsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw = b
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}

	var items []models.Item
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ID <= 0 || item.Title == "" {
			return nil, fmt.Errorf("catalog entry %+v: id and title are required", item)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id", item.ID)
		}
		seen[item.ID] = true
	}
	return items, nil
}

func imageURL(publicURL, image string) string {
	return publicURL + "/uploads/" + image
}
