package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ixurl.local/internal/app/imgix"
	"ixurl.local/internal/app/imgix/cache"
	"ixurl.local/internal/platform/metrics"
)

var ErrSourceNotFound = errors.New("source not found")
var ErrSourceExists = errors.New("source already exists")
var ErrAlreadyDisabled = errors.New("source already disabled")

const sourceColumns = `id, name, domains, use_https, sign_key, shard_strategy, include_library_param, disabled, url_count, created_at, updated_at`

type SourcesRepo struct {
	db    *pgxpool.Pool
	cache *cache.SourceCache
	bloom *cache.BloomFilter
}

// NewSourcesRepo wires the optional cache layers; nil disables a layer.
func NewSourcesRepo(db *pgxpool.Pool, cache *cache.SourceCache, bloom *cache.BloomFilter) *SourcesRepo {
	return &SourcesRepo{
		db:    db,
		cache: cache,
		bloom: bloom,
	}
}

// Create validates and stores src. Domains are stored normalized.
func (s *SourcesRepo) Create(ctx context.Context, src imgix.Source) (imgix.Source, error) {
	if err := imgix.ValidateSource(&src); err != nil {
		return imgix.Source{}, err
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := s.db.QueryRow(dbctx,
		`INSERT INTO sources (name, domains, use_https, sign_key, shard_strategy, include_library_param)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING `+sourceColumns,
		src.Name, src.Domains, src.UseHTTPS, src.SignKey, src.ShardStrategy.String(), src.IncludeLibraryParam)
	created, err := scanSource(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return imgix.Source{}, ErrSourceExists
		}
		slog.Error("create source failed", "name", src.Name, "err", err)
		return imgix.Source{}, err
	}

	if s.bloom != nil {
		s.bloom.Add(created.Name)
	}
	// Overwrites a negative entry left by an earlier lookup.
	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_ = s.cache.Set(cacheCtx, created)
	}
	return created, nil
}

// FindByName returns the source whether or not it is disabled. Uncached.
func (s *SourcesRepo) FindByName(ctx context.Context, name string) (imgix.Source, error) {
	dbctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	src, err := scanSource(s.db.QueryRow(dbctx, `SELECT `+sourceColumns+` FROM sources WHERE name=$1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return imgix.Source{}, ErrSourceNotFound
		}
		slog.Error("find source failed", "name", name, "err", err)
		return imgix.Source{}, err
	}
	return src, nil
}

// Resolve returns an active source for URL building, going through the bloom
// filter, the caches and finally Postgres. Unknown and disabled sources are
// both ErrSourceNotFound.
func (s *SourcesRepo) Resolve(ctx context.Context, name string) (imgix.Source, error) {
	if s.bloom != nil && !s.bloom.MightExist(name) {
		metrics.CacheOperations.WithLabelValues("bloom", "negative").Inc()
		return imgix.Source{}, ErrSourceNotFound
	}

	if s.cache != nil {
		src, res, err := s.cache.Get(ctx, name)
		if err != nil {
			slog.Warn("source cache get failed", "name", name, "err", err)
		}
		switch res {
		case cache.Hit:
			return src, nil
		case cache.NotFound:
			return imgix.Source{}, ErrSourceNotFound
		}
	}

	dbctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	src, err := scanSource(s.db.QueryRow(dbctx, `SELECT `+sourceColumns+` FROM sources WHERE name=$1 AND disabled=false`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.CacheOperations.WithLabelValues("db", "miss").Inc()
			if s.cache != nil {
				_ = s.cache.SetNotFound(ctx, name)
			}
			return imgix.Source{}, ErrSourceNotFound
		}
		metrics.CacheOperations.WithLabelValues("db", "error").Inc()
		slog.Error("resolve source failed", "name", name, "err", err)
		return imgix.Source{}, err
	}
	metrics.CacheOperations.WithLabelValues("db", "hit").Inc()

	if s.cache != nil {
		_ = s.cache.Set(ctx, src)
	}
	return src, nil
}

// List returns sources ordered by name, after the given name when non-empty.
func (s *SourcesRepo) List(ctx context.Context, after string, limit int) ([]imgix.Source, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, `SELECT `+sourceColumns+` FROM sources WHERE name > $1 ORDER BY name LIMIT $2`, after, limit)
	if err != nil {
		slog.Error("list sources failed", "err", err)
		return nil, err
	}
	defer rows.Close()

	result := make([]imgix.Source, 0, limit)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			slog.Error("scan source failed", "err", err)
			return nil, err
		}
		result = append(result, src)
	}
	if err := rows.Err(); err != nil {
		slog.Error("list sources failed", "err", err)
		return nil, err
	}
	return result, nil
}

func (s *SourcesRepo) Disable(ctx context.Context, name string) error {
	dbctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var ok int
	err := s.db.QueryRow(dbctx, `UPDATE sources SET disabled=true, updated_at=now() WHERE name=$1 AND disabled=false RETURNING 1`, name).Scan(&ok)
	if err == nil {
		s.invalidate(ctx, name)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		slog.Error("disable source failed", "name", name, "err", err)
		return err
	}

	// No row updated: either unknown or already disabled.
	var disabled bool
	if err := s.db.QueryRow(dbctx, `SELECT disabled FROM sources WHERE name=$1`, name).Scan(&disabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSourceNotFound
		}
		slog.Error("disable source failed", "name", name, "err", err)
		return err
	}
	if disabled {
		return ErrAlreadyDisabled
	}
	return fmt.Errorf("disable source %q: no row updated", name)
}

// Delete removes the source. Its url_events rows are kept.
func (s *SourcesRepo) Delete(ctx context.Context, name string) error {
	dbctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	tag, err := s.db.Exec(dbctx, `DELETE FROM sources WHERE name=$1`, name)
	if err != nil {
		slog.Error("delete source failed", "name", name, "err", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *SourcesRepo) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, name); err != nil {
		slog.Warn("source cache delete failed", "name", name, "err", err)
	}
}

// WarmBloom adds every stored source name to the bloom filter.
func (s *SourcesRepo) WarmBloom(ctx context.Context) (int, error) {
	if s.bloom == nil {
		return 0, nil
	}
	rows, err := s.db.Query(ctx, `SELECT name FROM sources`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return n, err
		}
		s.bloom.Add(name)
		n++
	}
	return n, rows.Err()
}

type URLEvent struct {
	ID      int64     `json:"id"` // pagination cursor
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Signed  bool      `json:"signed"`
	BuiltAt time.Time `json:"built_at"`
}

type EventsResponse struct {
	TotalURLs    int64      `json:"total_urls"`
	RecentEvents []URLEvent `json:"recent_events"`
	NextCursor   *int64     `json:"next_cursor,omitempty"`
}

// ListEvents pages url_events for a source newest first. cursor 0 starts at the newest.
func (s *SourcesRepo) ListEvents(ctx context.Context, name string, limit int, cursor int64) (*EventsResponse, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var total int64
	if err := s.db.QueryRow(dbctx, `SELECT url_count FROM sources WHERE name=$1`, name).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		slog.Error("list events failed", "name", name, "err", err)
		return nil, err
	}

	var rows pgx.Rows
	var err error
	if cursor == 0 {
		rows, err = s.db.Query(dbctx, `SELECT id,domain,path,signed,built_at FROM url_events WHERE source=$1 ORDER BY id DESC LIMIT $2`, name, limit)
	} else {
		rows, err = s.db.Query(dbctx, `SELECT id,domain,path,signed,built_at FROM url_events WHERE source=$1 AND id<$2 ORDER BY id DESC LIMIT $3`, name, cursor, limit)
	}
	if err != nil {
		slog.Error("list events failed", "name", name, "err", err)
		return nil, err
	}
	defer rows.Close()

	events := make([]URLEvent, 0, limit)
	for rows.Next() {
		var e URLEvent
		if err := rows.Scan(&e.ID, &e.Domain, &e.Path, &e.Signed, &e.BuiltAt); err != nil {
			slog.Error("scan event failed", "err", err)
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("list events failed", "name", name, "err", err)
		return nil, err
	}

	resp := &EventsResponse{TotalURLs: total, RecentEvents: events}
	if len(events) == limit && limit > 0 {
		resp.NextCursor = &events[len(events)-1].ID
	}
	return resp, nil
}

func scanSource(row pgx.Row) (imgix.Source, error) {
	var (
		src      imgix.Source
		id       int64
		strategy string
	)
	if err := row.Scan(&id, &src.Name, &src.Domains, &src.UseHTTPS, &src.SignKey, &strategy,
		&src.IncludeLibraryParam, &src.Disabled, &src.URLCount, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return imgix.Source{}, err
	}
	if err := src.ShardStrategy.UnmarshalText([]byte(strategy)); err != nil {
		return imgix.Source{}, fmt.Errorf("source %q: %w", src.Name, err)
	}
	handle, err := imgix.EncodeSourceID(uint64(id))
	if err != nil {
		return imgix.Source{}, fmt.Errorf("encode source id %d: %w", id, err)
	}
	src.ID = handle
	return src, nil
}
