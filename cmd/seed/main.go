// Command seed fills the products table with a deterministic delivery menu.
// Rows that already exist are left untouched, so it is safe to re-run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/DeliveryGo/internal/config"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/migrations"
	pkgconfig "github.com/utafrali/DeliveryGo/pkg/config"
	"github.com/utafrali/DeliveryGo/pkg/database"
	"github.com/utafrali/DeliveryGo/pkg/logger"
)

const batchSize = 500

const insertSeedProductSQL = `
	INSERT INTO products (id, name, description, price, image_url, category, is_available, stock_quantity, created_at, updated_at)
	VALUES ($1, $2, $3, $4, '', $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

type seedConfig struct {
	ProductCount int `env:"PRODUCT_COUNT" envDefault:"500"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var seedCfg seedConfig
	if err := pkgconfig.LoadWithPrefix(&seedCfg, "SEED_"); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("delivery-seed", cfg.LogLevel)
	if err := run(cfg, seedCfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, seedCfg seedConfig, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	products := generateCatalog(seedCfg.ProductCount, time.Now().UTC())
	log.Info("seeding products", slog.Int("count", len(products)))

	var inserted int64
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		n, err := insertBatch(ctx, pool, products[start:end])
		if err != nil {
			return fmt.Errorf("insert products %d-%d: %w", start, end, err)
		}
		inserted += n
		log.Info("batch done", slog.Int("seeded", end), slog.Int("total", len(products)))
	}

	log.Info("seed complete",
		slog.Int64("inserted", inserted),
		slog.Int64("skipped", int64(len(products))-inserted),
	)
	return nil
}

func insertBatch(ctx context.Context, pool *pgxpool.Pool, products []domain.Product) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(insertSeedProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Category,
			p.IsAvailable, p.StockQuantity, p.CreatedAt, p.UpdatedAt,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range products {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
