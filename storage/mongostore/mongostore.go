// Package mongostore implements storage.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecoleta/models"
	"ecoleta/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client     *mongo.Client
	items      *mongo.Collection
	points     *mongo.Collection
	pointItems *mongo.Collection
	counters   *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// pointDocument adds the GeoJSON location used by the 2dsphere index
type pointDocument struct {
	models.Point `bson:",inline"`
	Location     models.GeoPoint `bson:"location"`
}

// Open connects to MongoDB and checks the connection.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	slog.Info("connected to MongoDB", "database", database)

	db := client.Database(database)
	return &Store{
		client:     client,
		items:      db.Collection("items"),
		points:     db.Collection("points"),
		pointItems: db.Collection("point_items"),
		counters:   db.Collection("counters"),
	}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// InitSchema creates the indexes backing filters and associations.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.points.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uf", Value: 1}, {Key: "city", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
	})
	if err != nil {
		return fmt.Errorf("create point indexes: %w", err)
	}

	_, err = s.pointItems.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "point_id", Value: 1}, {Key: "item_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "item_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create point_items indexes: %w", err)
	}
	return nil
}

func (s *Store) SeedItems(ctx context.Context, items []models.Item) error {
	for _, item := range items {
		_, err := s.items.UpdateOne(ctx,
			bson.M{"_id": item.ID},
			bson.M{"$set": bson.M{"title": item.Title, "image": item.Image}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("seed item %d: %w", item.ID, err)
		}
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	return s.findItems(ctx, bson.M{})
}

// CreatePoint inserts the point and its links. Standalone servers have no
// multi-document transactions, so a failed link insert deletes what was written.
func (s *Store) CreatePoint(ctx context.Context, p *models.Point, itemIDs []int64) error {
	itemIDs = storage.DedupeIDs(itemIDs)

	if len(itemIDs) > 0 {
		found, err := s.items.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": itemIDs}})
		if err != nil {
			return fmt.Errorf("check items: %w", err)
		}
		if int(found) != len(itemIDs) {
			return storage.ErrUnknownItem
		}
	}

	id, err := s.nextID(ctx, "points")
	if err != nil {
		return err
	}
	p.ID = id
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	// stored with millisecond precision
	p.CreatedAt = p.CreatedAt.UTC().Truncate(time.Millisecond)

	doc := pointDocument{Point: *p, Location: models.NewGeoPoint(p.Latitude, p.Longitude)}
	if _, err := s.points.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert point: %w", err)
	}

	if len(itemIDs) > 0 {
		links := make([]any, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			links = append(links, models.PointItem{PointID: p.ID, ItemID: itemID})
		}
		if _, err := s.pointItems.InsertMany(ctx, links); err != nil {
			s.rollbackPoint(p.ID)
			return fmt.Errorf("link items: %w", err)
		}
	}

	p.Items = itemIDs
	return nil
}

func (s *Store) rollbackPoint(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.pointItems.DeleteMany(ctx, bson.M{"point_id": id}); err != nil {
		slog.Error("rollback point links failed", "point_id", id, "error", err)
	}
	if _, err := s.points.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		slog.Error("rollback point failed", "point_id", id, "error", err)
	}
}

func (s *Store) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.Point, error) {
	query := bson.M{}
	if filter.City != "" {
		query["city"] = filter.City
	}
	if filter.UF != "" {
		query["uf"] = filter.UF
	}
	if items := storage.DedupeIDs(filter.Items); len(items) > 0 {
		ids, err := s.pointItems.Distinct(ctx, "point_id", bson.M{"item_id": bson.M{"$in": items}})
		if err != nil {
			return nil, fmt.Errorf("match items: %w", err)
		}
		query["_id"] = bson.M{"$in": ids}
	}

	cursor, err := s.points.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer cursor.Close(ctx)

	points := []models.Point{}
	for cursor.Next(ctx) {
		var doc pointDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode point: %w", err)
		}
		points = append(points, normalise(doc.Point))
	}
	return points, cursor.Err()
}

func (s *Store) GetPoint(ctx context.Context, id int64) (models.Point, error) {
	var doc pointDocument
	err := s.points.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Point{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Point{}, fmt.Errorf("get point: %w", err)
	}
	return normalise(doc.Point), nil
}

func (s *Store) PointItems(ctx context.Context, pointID int64) ([]models.Item, error) {
	ids, err := s.pointItems.Distinct(ctx, "item_id", bson.M{"point_id": pointID})
	if err != nil {
		return nil, fmt.Errorf("point items: %w", err)
	}
	if len(ids) == 0 {
		return []models.Item{}, nil
	}
	return s.findItems(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) findItems(ctx context.Context, query bson.M) ([]models.Item, error) {
	cursor, err := s.items.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

// nextID increments and returns the named sequence.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func normalise(p models.Point) models.Point {
	p.CreatedAt = p.CreatedAt.UTC()
	return p
}
