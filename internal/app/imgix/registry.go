package imgix

import (
	"log/slog"
	"slices"
	"sync"
)

type registryEntry struct {
	source  Source
	builder *Builder
}

// Registry keeps one Builder per source name so that cycle cursors survive
// across requests. A builder is replaced only when the source's URL-relevant
// configuration changes.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]registryEntry
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:  logger,
		entries: make(map[string]registryEntry),
	}
}

// Get returns the builder for src, creating or replacing it when needed.
func (r *Registry) Get(src Source) (*Builder, error) {
	r.mu.RLock()
	e, ok := r.entries[src.Name]
	r.mu.RUnlock()
	if ok && sameConfig(e.source, src) {
		return e.builder, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[src.Name]; ok && sameConfig(e.source, src) {
		return e.builder, nil
	}
	b, err := src.NewBuilder(r.logger)
	if err != nil {
		return nil, err
	}
	src.Domains = append([]string(nil), src.Domains...)
	r.entries[src.Name] = registryEntry{source: src, builder: b}
	r.logger.Debug("imgix builder created", "source", src.Name, "domains", len(src.Domains), "strategy", src.ShardStrategy.String())
	return b, nil
}

// Forget drops the builder for name, e.g. after the source is deleted.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func sameConfig(a, b Source) bool {
	return a.UseHTTPS == b.UseHTTPS &&
		a.SignKey == b.SignKey &&
		a.ShardStrategy == b.ShardStrategy &&
		a.IncludeLibraryParam == b.IncludeLibraryParam &&
		slices.Equal(a.Domains, b.Domains)
}
