package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lockID serializes migrations across replicas starting at the same time.
const lockID int64 = 0x69787572 // "ixur"

type Options struct {
	// Dir is a directory of *.sql files. When empty, FS is used.
	Dir string
	// FS holds *.sql files at its root, usually the embedded migrations.
	FS fs.FS
}

type Result struct {
	Source       string
	AppliedFiles []string
	SkippedFiles []string
}

// Up applies every not yet recorded *.sql file in name order, each in its own
// transaction, and records it in schema_migrations.
func Up(ctx context.Context, db *pgxpool.Pool, opts Options) (*Result, error) {
	fsys, source, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	names, err := listSQLFiles(fsys)
	if err != nil {
		return nil, err
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return nil, fmt.Errorf("migration lock: %w", err)
	}
	defer conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)

	if err := ensureTable(ctx, conn.Conn()); err != nil {
		return nil, err
	}

	res := &Result{Source: source}
	for _, name := range names {
		applied, err := isApplied(ctx, conn.Conn(), name)
		if err != nil {
			return nil, err
		}
		if applied {
			res.SkippedFiles = append(res.SkippedFiles, name)
			continue
		}
		if err := applyFile(ctx, conn.Conn(), fsys, name); err != nil {
			return nil, err
		}
		res.AppliedFiles = append(res.AppliedFiles, name)
	}
	return res, nil
}

func resolve(opts Options) (fs.FS, string, error) {
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		dir = filepath.Clean(dir)
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			return nil, "", fmt.Errorf("migrations dir not found: %s", dir)
		}
		return os.DirFS(dir), dir, nil
	}
	if opts.FS != nil {
		return opts.FS, "embedded", nil
	}
	return nil, "", fmt.Errorf("no migrations source configured")
}

func ensureTable(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	return err
}

// listSQLFiles returns the *.sql names at the root of fsys, sorted.
func listSQLFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func isApplied(ctx context.Context, conn *pgx.Conn, version string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	return exists, err
}

func applyFile(ctx context.Context, conn *pgx.Conn, fsys fs.FS, name string) error {
	sqlBytes, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1,$2)`, name, time.Now()); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit(ctx)
}
