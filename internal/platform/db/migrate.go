package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const migrationsTable = "schema_migrations"

type migrationFile struct {
	Version string
	Path    string
}

// Migrate applies pending *.sql files from dir in lexical order. Each file
// and its schema_migrations row commit together. It returns the versions
// applied by this call.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dir string, log zerolog.Logger) ([]string, error) {
	if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+migrationsTable+" (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", migrationsTable, err)
	}
	done, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}
	files, err := collectMigrations(dir)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		if done[file.Version] {
			continue
		}
		if err := applyMigration(ctx, pool, file); err != nil {
			return applied, err
		}
		log.Info().Str("version", file.Version).Msg("migration applied")
		applied = append(applied, file.Version)
	}
	return applied, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM "+migrationsTable)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func collectMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, migrationFile{
			Version: strings.TrimSuffix(entry.Name(), ".sql"),
			Path:    filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, file migrationFile) error {
	body, err := os.ReadFile(file.Path)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", file.Version, err)
		}
		_, err := tx.Exec(ctx, "INSERT INTO "+migrationsTable+" (version) VALUES ($1)", file.Version)
		return err
	})
}
