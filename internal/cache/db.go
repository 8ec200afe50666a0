package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"visitagent/internal/config"
	"visitagent/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// New opens the on-device sqlite cache and returns a Bun DB handle. The
// cache holds the last successful outlet / plan-visit fetches so lists stay
// usable when the field device has no signal.
func New(path string, cfg *config.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// sqlite: a single writer, keep the pool tiny
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// Optional query logging
	if cfg.BunDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to prepare cache schema: %w", err)
	}

	return db, nil
}

func migrate(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.CachedOutlet)(nil),
		(*models.CachedPlanVisit)(nil),
	}
	for _, t := range tables {
		if _, err := db.NewCreateTable().Model(t).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
