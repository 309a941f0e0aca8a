// Package sqlstore implements storage.Store on SQLite (modernc.org/sqlite) or
// PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ecoleta/models"
	"ecoleta/storage"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store wraps a database/sql handle and the dialect it speaks.
type Store struct {
	db     *sql.DB
	driver string
}

var _ storage.Store = (*Store)(nil)

// OpenSQLite opens a SQLite database at path, creating parent directories.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*Store, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps writes serialised and an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return &Store{db: db, driver: DriverSQLite}, nil
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open(DriverPostgres, connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, driver: DriverPostgres}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InitSchema creates the catalog, points and association tables if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	pointID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		pointID = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			image TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS points (
			id ` + pointID + `,
			image TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			whatsapp TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			city TEXT NOT NULL,
			uf VARCHAR(2) NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_uf_city ON points(uf, city)`,
		`CREATE TABLE IF NOT EXISTS point_items (
			point_id BIGINT NOT NULL REFERENCES points(id) ON DELETE CASCADE,
			item_id BIGINT NOT NULL REFERENCES items(id),
			PRIMARY KEY (point_id, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_point_items_item ON point_items(item_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) SeedItems(ctx context.Context, items []models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO items (id, title, image) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, image = excluded.image`)
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, query, item.ID, item.Title, item.Image); err != nil {
			return fmt.Errorf("seed item %d: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, image FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *Store) CreatePoint(ctx context.Context, p *models.Point, itemIDs []int64) error {
	itemIDs = storage.DedupeIDs(itemIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create point: %w", err)
	}
	defer tx.Rollback()

	if len(itemIDs) > 0 {
		var found int
		query := s.rebind(`SELECT COUNT(*) FROM items WHERE id IN (` + placeholders(len(itemIDs)) + `)`)
		if err := tx.QueryRowContext(ctx, query, int64Args(itemIDs)...).Scan(&found); err != nil {
			return fmt.Errorf("check items: %w", err)
		}
		if found != len(itemIDs) {
			return storage.ErrUnknownItem
		}
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	// stored with millisecond precision
	p.CreatedAt = p.CreatedAt.UTC().Truncate(time.Millisecond)
	insert := s.rebind(`INSERT INTO points (image, name, email, whatsapp, latitude, longitude, city, uf, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = tx.QueryRowContext(ctx, insert,
		p.Image, p.Name, p.Email, p.Whatsapp, p.Latitude, p.Longitude, p.City, p.UF, p.CreatedAt.UnixMilli(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert point: %w", err)
	}

	link := s.rebind(`INSERT INTO point_items (point_id, item_id) VALUES (?, ?)`)
	for _, itemID := range itemIDs {
		if _, err := tx.ExecContext(ctx, link, p.ID, itemID); err != nil {
			return fmt.Errorf("link item %d: %w", itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit point: %w", err)
	}
	p.Items = itemIDs
	return nil
}

func (s *Store) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.Point, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT DISTINCT p.id, p.image, p.name, p.email, p.whatsapp, p.latitude, p.longitude, p.city, p.uf, p.created_at
		FROM points p`)
	if items := storage.DedupeIDs(filter.Items); len(items) > 0 {
		query.WriteString(` JOIN point_items pi ON pi.point_id = p.id AND pi.item_id IN (` + placeholders(len(items)) + `)`)
		args = append(args, int64Args(items)...)
	}
	query.WriteString(` WHERE 1 = 1`)
	if filter.City != "" {
		query.WriteString(` AND p.city = ?`)
		args = append(args, filter.City)
	}
	if filter.UF != "" {
		query.WriteString(` AND p.uf = ?`)
		args = append(args, filter.UF)
	}
	query.WriteString(` ORDER BY p.id`)

	rows, err := s.db.QueryContext(ctx, s.rebind(query.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	points := []models.Point{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) GetPoint(ctx context.Context, id int64) (models.Point, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, image, name, email, whatsapp, latitude, longitude, city, uf, created_at
		FROM points WHERE id = ?`), id)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Point{}, storage.ErrNotFound
	}
	return p, err
}

func (s *Store) PointItems(ctx context.Context, pointID int64) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT i.id, i.title, i.image
		FROM items i JOIN point_items pi ON pi.item_id = i.id
		WHERE pi.point_id = ? ORDER BY i.id`), pointID)
	if err != nil {
		return nil, fmt.Errorf("point items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoint(row scanner) (models.Point, error) {
	var (
		p         models.Point
		createdAt int64
	)
	err := row.Scan(&p.ID, &p.Image, &p.Name, &p.Email, &p.Whatsapp, &p.Latitude, &p.Longitude, &p.City, &p.UF, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan point: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return p, nil
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Title, &item.Image); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
