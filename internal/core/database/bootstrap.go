package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// defaultEmbedDim is the dimension written in the embedded schema script.
const defaultEmbedDim = 768

// EnsureBootstrapped applies the embedded schema once and verifies that the
// embedding column's dimension matches the configured one. It is safe to call
// on every start; the verdicta_meta version row guards re-runs.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, embedDim int) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'verdicta_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		if err := runBootstrap(ctxBoot, db, embedDim); err != nil {
			return err
		}
		return verifyEmbeddingDim(ctxBoot, db, embedDim)
	}

	var hasVersion bool
	if err := db.QueryRowContext(ctxBoot, `SELECT EXISTS (SELECT 1 FROM verdicta_meta WHERE version = 1)`).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		if err := runBootstrap(ctxBoot, db, embedDim); err != nil {
			return err
		}
	}

	return verifyEmbeddingDim(ctxBoot, db, embedDim)
}

func runBootstrap(ctx context.Context, db *sql.DB, embedDim int) error {
	script, err := renderBootstrapSQL(embedDim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

// renderBootstrapSQL rewrites the schema's embedding dimension to the
// configured one. The embedded script carries the default.
func renderBootstrapSQL(embedDim int) (string, error) {
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	script := string(raw)
	if embedDim > 0 && embedDim != defaultEmbedDim {
		script = strings.ReplaceAll(script,
			fmt.Sprintf("vector(%d)", defaultEmbedDim),
			fmt.Sprintf("vector(%d)", embedDim))
	}
	return script, nil
}

// verifyEmbeddingDim fails startup when the configured dimension disagrees
// with the existing schema; every page insert would fail at runtime
// otherwise. pgvector stores the dimension in the column's atttypmod.
func verifyEmbeddingDim(ctx context.Context, db *sql.DB, embedDim int) error {
	if embedDim <= 0 {
		return nil
	}
	var dim int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'page_content'::regclass AND attname = 'embedding'`).
		Scan(&dim)
	if err != nil {
		return fmt.Errorf("embedding column check failed: %w", err)
	}
	if dim != embedDim {
		return fmt.Errorf("EMBED_DIM is %d but page_content.embedding is vector(%d); migrate the column or fix the config", embedDim, dim)
	}
	return nil
}
