package infra

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the users, assets and crypto_balances tables when
// missing and adds assets to the catalog.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, assets ...string) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if len(assets) == 0 {
		return nil
	}
	if _, err := pool.Exec(ctx, `INSERT INTO assets (id) SELECT unnest($1::text[]) ON CONFLICT (id) DO NOTHING`, assets); err != nil {
		return fmt.Errorf("seed assets: %w", err)
	}
	return nil
}
