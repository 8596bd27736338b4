package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer persists a batch of events.
type Writer interface {
	Write(ctx context.Context, batch []BuildEvent) error
}

// PgWriter inserts events into url_events and bumps sources.url_count once
// per source in the same transaction. Default builder events have no source
// row and are only inserted.
type PgWriter struct {
	db *pgxpool.Pool
}

func NewPgWriter(db *pgxpool.Pool) *PgWriter {
	return &PgWriter{db: db}
}

func (w *PgWriter) Write(ctx context.Context, batch []BuildEvent) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(context.Background())

	b := &pgx.Batch{}
	for _, e := range batch {
		b.Queue(`INSERT INTO url_events (source,domain,path,signed,built_at,ip) VALUES ($1,$2,$3,$4,$5,$6)`,
			e.Source, e.Domain, e.Path, e.Signed, e.BuiltAt, e.IP)
	}
	counts := countBySource(batch)
	for name, n := range counts {
		b.Queue(`UPDATE sources SET url_count = url_count + $1 WHERE name = $2`, n, name)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("write %d events: %w", len(batch), err)
	}
	return tx.Commit(ctx)
}

func countBySource(batch []BuildEvent) map[string]int64 {
	counts := make(map[string]int64)
	for _, e := range batch {
		if e.Source != "" {
			counts[e.Source]++
		}
	}
	return counts
}

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
	flushTimeout     = 5 * time.Second
)
