package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"ecoleta/cache"
	"ecoleta/events"
	"ecoleta/middleware"
	"ecoleta/models"
	"ecoleta/storage"
	"ecoleta/utils/errors"
)

type PointService struct {
	store     storage.Store
	cache     *cache.Cache
	geo       cache.GeoIndex
	events    events.Publisher
	publicURL string
}

func NewPointService(store storage.Store, c *cache.Cache, geo cache.GeoIndex, pub events.Publisher, publicURL string) *PointService {
	if geo == nil {
		geo = cache.NewTreeGeoIndex()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &PointService{
		store:     store,
		cache:     c,
		geo:       geo,
		events:    pub,
		publicURL: publicURL,
	}
}

// LoadGeoIndex copies every stored point into the geo index
func (s *PointService) LoadGeoIndex(ctx context.Context) error {
	points, err := s.store.ListPoints(ctx, models.PointFilter{})
	if err != nil {
		return fmt.Errorf("load points for geo index: %w", err)
	}
	for _, p := range points {
		if err := s.geo.Add(ctx, p.ID, p.Latitude, p.Longitude); err != nil {
			return err
		}
	}
	size, err := s.geo.Size(ctx)
	if err != nil {
		return fmt.Errorf("geo index size: %w", err)
	}
	slog.Info("geo index loaded", "points", len(points), "indexed", size)
	return nil
}

// CreatePoint stores a new point and its item associations.
func (s *PointService) CreatePoint(ctx context.Context, input models.CreatePointInput) (models.Point, error) {
	point := models.Point{
		Image:     models.DefaultPointImage,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Whatsapp:  strings.TrimSpace(input.Whatsapp),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		UF:        strings.TrimSpace(input.UF),
		City:      strings.TrimSpace(input.City),
	}

	if point.Name == "" {
		return models.Point{}, errors.Invalid("name is required")
	}
	if err := validateCoordinates(point.Latitude, point.Longitude); err != nil {
		return models.Point{}, err
	}

	itemIDs := input.Items
	if itemIDs == nil {
		itemIDs = []int64{}
	}

	if err := s.store.CreatePoint(ctx, &point, itemIDs); err != nil {
		if stderrors.Is(err, storage.ErrUnknownItem) {
			return models.Point{}, errors.Invalid("items must reference catalog entries")
		}
		return models.Point{}, errors.Wrap(err, "DB_ERROR", "Failed to create point", http.StatusInternalServerError)
	}

	if err := s.geo.Add(ctx, point.ID, point.Latitude, point.Longitude); err != nil {
		slog.Warn("failed to index point", "point_id", point.ID, "error", err)
	}
	if err := s.events.PointCreated(ctx, point); err != nil {
		slog.Warn("failed to publish point event", "point_id", point.ID, "error", err)
	}

	slog.Info("point created",
		"point_id", point.ID,
		"uf", point.UF,
		"city", point.City,
		"items", len(point.Items),
		"subject", middleware.Subject(ctx),
		"request_id", middleware.RequestID(ctx),
	)
	return point, nil
}

// ListPoints returns points matching filter. With a Near coordinate the
// result is limited to RadiusKm and ordered nearest first.
func (s *PointService) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.Point, error) {
	points, err := s.store.ListPoints(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "Failed to list points", http.StatusInternalServerError)
	}
	if filter.Near == nil {
		return points, nil
	}

	if filter.RadiusKm <= 0 {
		return nil, errors.Invalid("radius must be positive")
	}
	lat, lon := filter.Near.Lat(), filter.Near.Lon()
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	hits, err := s.geo.Nearby(ctx, lat, lon, filter.RadiusKm)
	if err != nil {
		return nil, errors.Wrap(err, "GEO_ERROR", "Failed to search nearby points", http.StatusInternalServerError)
	}
	distance := make(map[int64]float64, len(hits))
	for _, hit := range hits {
		distance[hit.PointID] = hit.DistanceKm
	}

	nearby := make([]models.Point, 0, len(hits))
	for _, p := range points {
		if d, ok := distance[p.ID]; ok {
			p.DistanceKm = d
			nearby = append(nearby, p)
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby, nil
}

// GetPoint returns a point with the items it accepts.
func (s *PointService) GetPoint(ctx context.Context, id int64) (models.PointDetail, error) {
	if detail, ok := s.cache.PointDetail(ctx, id); ok {
		return detail, nil
	}

	point, err := s.store.GetPoint(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return models.PointDetail{}, errors.ErrPointNotFound
		}
		return models.PointDetail{}, errors.Wrap(err, "DB_ERROR", "Failed to load point", http.StatusInternalServerError)
	}

	items, err := s.store.PointItems(ctx, id)
	if err != nil {
		return models.PointDetail{}, errors.Wrap(err, "DB_ERROR", "Failed to load point items", http.StatusInternalServerError)
	}
	point.Items = make([]int64, 0, len(items))
	for i := range items {
		items[i].ImageURL = imageURL(s.publicURL, items[i].Image)
		point.Items = append(point.Items, items[i].ID)
	}

	detail := models.PointDetail{Point: point, Items: items}
	s.cache.SetPointDetail(ctx, detail)
	return detail, nil
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errors.Invalid(fmt.Sprintf("invalid coordinates: lat=%f, lon=%f", lat, lon))
	}
	return nil
}
