// Command seed-db provisions a demo store with a small catalog and prints a
// signed session token for it, so a fresh database is immediately usable for
// local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hanpos/hanpos/internal/auth"
	"github.com/hanpos/hanpos/internal/postgres"
)

// Fixed IDs so reseeding is idempotent and tokens stay valid across runs.
const (
	demoStoreID = "11111111-1111-1111-1111-111111111111"
	demoUserID  = "22222222-2222-2222-2222-222222222222"
)

type menuItem struct {
	id    string
	name  string
	price int64
}

type menuOption struct {
	id    string
	name  string
	delta int64
}

var demoItems = []menuItem{
	{"aaaaaaaa-0000-0000-0000-000000000001", "Kimchi Stew", 9000},
	{"aaaaaaaa-0000-0000-0000-000000000002", "Bulgogi", 13000},
	{"aaaaaaaa-0000-0000-0000-000000000003", "Bibimbap", 10000},
	{"aaaaaaaa-0000-0000-0000-000000000004", "Iced Americano", 3500},
}

var demoSets = []menuItem{
	{"bbbbbbbb-0000-0000-0000-000000000001", "Lunch Set A", 15000},
	{"bbbbbbbb-0000-0000-0000-000000000002", "Lunch Set B", 18000},
}

var demoOptions = []menuOption{
	{"cccccccc-0000-0000-0000-000000000001", "Extra Rice", 1000},
	{"cccccccc-0000-0000-0000-000000000002", "Extra Cheese", 500},
	{"cccccccc-0000-0000-0000-000000000003", "Large Size", 500},
}

func main() {
	var (
		databaseURL string
		jwtSecret   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for the printed session token (or HANPOS_JWT_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("HANPOS_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, jwtSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, jwtSecret string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedStore(ctx, pool); err != nil {
		return errors.Wrap(err, "seed store")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if jwtSecret != "" {
		token, err := auth.NewVerifier([]byte(jwtSecret)).Sign(&auth.Session{
			UserID:  demoUserID,
			StoreID: demoStoreID,
			Role:    "MANAGER",
		}, 30*24*time.Hour)
		if err != nil {
			return errors.Wrap(err, "sign session token")
		}
		fmt.Printf("demo store:    %s\ndemo token:    %s\n", demoStoreID, token)
	}

	return nil
}

func seedStore(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting demo store", slog.String("id", demoStoreID))

	_, err := pool.Exec(ctx, `
		INSERT INTO stores (id, code, name, timezone)
		VALUES ($1, 'DEMO', 'Demo Store', 'Asia/Seoul')
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`,
		demoStoreID)
	return err
}

// seedCatalog upserts items, sets and options concurrently. The three tables
// are independent so the writes can proceed in parallel.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, it := range demoItems {
			if _, err := pool.Exec(ctx, `
				INSERT INTO menu_items (id, store_id, name, price)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()`,
				it.id, demoStoreID, it.name, decimal.NewFromInt(it.price)); err != nil {
				return errors.Wrapf(err, "upsert item %s", it.name)
			}
			slog.Info("upserted menu item", slog.String("name", it.name))
		}
		return nil
	})

	g.Go(func() error {
		for _, st := range demoSets {
			if _, err := pool.Exec(ctx, `
				INSERT INTO menu_sets (id, store_id, name, price)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()`,
				st.id, demoStoreID, st.name, decimal.NewFromInt(st.price)); err != nil {
				return errors.Wrapf(err, "upsert set %s", st.name)
			}
			slog.Info("upserted menu set", slog.String("name", st.name))
		}
		return nil
	})

	g.Go(func() error {
		for _, op := range demoOptions {
			if _, err := pool.Exec(ctx, `
				INSERT INTO menu_options (id, store_id, name, price_delta)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price_delta = EXCLUDED.price_delta, updated_at = now()`,
				op.id, demoStoreID, op.name, decimal.NewFromInt(op.delta)); err != nil {
				return errors.Wrapf(err, "upsert option %s", op.name)
			}
			slog.Info("upserted menu option", slog.String("name", op.name))
		}
		return nil
	})

	return g.Wait()
}
