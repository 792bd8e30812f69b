// Package db owns the Postgres schema for cleaning runs and applies it
// at boot.
package db

import (
	"context"
	_ "embed"
	"fmt"

	"clearmark/internal/infra"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the schema idempotently. Every statement is
// "if not exists", so running it on every boot is safe. Pass the raw
// pool, not the marker-enforcing runner.
func EnsureSchema(ctx context.Context, exec infra.SQLExecutor) error {
	if _, err := exec.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}
	return nil
}
