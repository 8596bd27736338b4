package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"ixurl.local/internal/app/imgix"
)

// localEntry is stored by value; missing marks a negative entry.
type localEntry struct {
	src     imgix.Source
	missing bool
}

// LocalCache is the in-process L1 in front of Redis. TTLs are short so
// replicas converge after a change made elsewhere.
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache holds up to maxItems sources (cost 1 each).
func NewLocalCache(maxItems int64) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      time.Minute,
		emptyTTL: 10 * time.Second,
	}, nil
}

func (l *LocalCache) Get(name string) (imgix.Source, Result) {
	v, ok := l.cache.Get(name)
	if !ok {
		return imgix.Source{}, Miss
	}
	e, ok := v.(localEntry)
	if !ok {
		return imgix.Source{}, Miss
	}
	if e.missing {
		return imgix.Source{}, NotFound
	}
	return e.src, Hit
}

func (l *LocalCache) Set(src imgix.Source) {
	l.cache.SetWithTTL(src.Name, localEntry{src: src}, 1, l.ttl)
}

func (l *LocalCache) SetNotFound(name string) {
	l.cache.SetWithTTL(name, localEntry{missing: true}, 1, l.emptyTTL)
}

func (l *LocalCache) Del(name string) {
	l.cache.Del(name)
}

// Wait blocks until buffered writes are applied.
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
