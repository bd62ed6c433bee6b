package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/spf13/viper"
)

func openStore(ctx context.Context) (*store.Store, *pgxpool.Pool, error) {
	dsn := viper.GetString("database_url")
	if dsn == "" {
		return nil, nil, fmt.Errorf("database connection string not set (pass --database-url or set DATABASE_URL)")
	}

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	return store.New(db), db, nil
}
