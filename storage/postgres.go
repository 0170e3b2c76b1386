package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoria-scraper/config"
	"autoria-scraper/models"
)

const connectTimeout = 10 * time.Second

// dbPool is the slice of *pgxpool.Pool the store depends on.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// CarStore persists crawled cars in PostgreSQL. The cars table carries a
// UNIQUE constraint on url; Save and SaveBatch lean on it, so the store is
// the system of record for cross-run deduplication.
type CarStore struct {
	pool dbPool
}

func NewCarStore(ctx context.Context, cfg *config.Config) (*CarStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CarStore{pool: pool}, nil
}

func (s *CarStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *CarStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the cars table and its indexes if they are missing.
// This is bootstrap, not migration: existing tables are left untouched.
func (s *CarStore) EnsureSchema(ctx context.Context) error {
	sql := `
	CREATE TABLE IF NOT EXISTS cars (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		price_usd INTEGER,
		odometer INTEGER,
		username TEXT,
		phone_number BIGINT,
		image_url TEXT,
		images_count INTEGER,
		car_number TEXT,
		car_vin TEXT,
		datetime_found TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_cars_price_usd ON cars(price_usd);
	CREATE INDEX IF NOT EXISTS idx_cars_datetime_found ON cars(datetime_found);
	`

	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertCarSQL = `
INSERT INTO cars (url, title, price_usd, odometer, username, phone_number,
                  image_url, images_count, car_number, car_vin)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (url) DO NOTHING
RETURNING id, datetime_found;
`

// Save inserts one car, reporting whether a new row was created. A false
// return means the URL is already stored from some earlier run; the
// existing row is never touched. On insert the car's ID and FoundAt are
// filled in from the database.
func (s *CarStore) Save(ctx context.Context, car *models.Car) (bool, error) {
	row := s.pool.QueryRow(ctx, insertCarSQL,
		car.URL, car.Title, car.PriceUSD, car.OdometerKm, car.SellerName,
		car.PhoneNumber, car.ImageURL, car.ImagesCount, car.PlateNumber, car.VIN,
	)

	err := row.Scan(&car.ID, &car.FoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert car %s: %w", car.URL, err)
	}
	return true, nil
}

// SaveBatch inserts cars inside a single transaction and returns how many
// new rows were created. The batch is all-or-nothing: any statement error
// rolls back every insert and the count is 0. Duplicate URLs are not
// errors, they just do not count.
func (s *CarStore) SaveBatch(ctx context.Context, cars []models.Car) (int, error) {
	if len(cars) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, car := range cars {
		batch.Queue(insertCarSQL,
			car.URL, car.Title, car.PriceUSD, car.OdometerKm, car.SellerName,
			car.PhoneNumber, car.ImageURL, car.ImagesCount, car.PlateNumber, car.VIN,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range cars {
		var (
			id    int64
			found time.Time
		)
		err := results.QueryRow().Scan(&id, &found)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("batch insert: %w", err)
		}
		inserted++
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// AllCars returns every stored car in insertion order.
func (s *CarStore) AllCars(ctx context.Context) ([]models.Car, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, title, price_usd, odometer, username, phone_number,
		       image_url, images_count, car_number, car_vin, datetime_found
		FROM cars
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		var c models.Car
		if err := rows.Scan(
			&c.ID, &c.URL, &c.Title, &c.PriceUSD, &c.OdometerKm, &c.SellerName,
			&c.PhoneNumber, &c.ImageURL, &c.ImagesCount, &c.PlateNumber, &c.VIN,
			&c.FoundAt,
		); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cars: %w", err)
	}
	return cars, nil
}
