package httpapi

import (
	"context"
	"log/slog"
	"time"

	"ixurl.local/gee"
	"ixurl.local/internal/app/imgix"
	"ixurl.local/internal/app/imgix/repo"
	"ixurl.local/internal/app/imgix/stats"
	"ixurl.local/internal/platform/auth"
	"ixurl.local/internal/platform/httpmiddleware"
	"ixurl.local/internal/platform/ratelimit"
)

// SourceResolver finds active sources for URL building.
type SourceResolver interface {
	Resolve(ctx context.Context, name string) (imgix.Source, error)
}

// SourceStore is the admin view of stored sources. *repo.SourcesRepo implements it.
type SourceStore interface {
	SourceResolver
	Create(ctx context.Context, src imgix.Source) (imgix.Source, error)
	FindByName(ctx context.Context, name string) (imgix.Source, error)
	List(ctx context.Context, after string, limit int) ([]imgix.Source, error)
	Disable(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	ListEvents(ctx context.Context, name string, limit int, cursor int64) (*repo.EventsResponse, error)
}

// OperatorStore is implemented by *repo.OperatorsRepo.
type OperatorStore interface {
	FindByUsername(ctx context.Context, username string) (repo.Operator, error)
	Create(ctx context.Context, username, password, role string) (int64, error)
}

// Deps carries everything the routes need. Default may be nil, in which case
// POST /urls answers 503. Limiter may be nil to disable rate limiting.
type Deps struct {
	Sources   SourceStore
	Operators OperatorStore
	Registry  *imgix.Registry
	Default   *imgix.Builder
	Collector stats.Collector
	Tokens    auth.TokenService
	Limiter   ratelimit.Allower
	Logger    *slog.Logger
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Registry == nil {
		d.Registry = imgix.NewRegistry(d.Logger)
	}
	if d.Collector == nil {
		d.Collector = stats.Discard{}
	}
}

// RegisterAPIRoutes mounts the URL and admin routes under api (usually /api/v1).
func RegisterAPIRoutes(api *gee.RouterGroup, d Deps) {
	d.defaults()
	urls := &urlHandlers{deps: d}

	api.POST("/urls", httpmiddleware.RateLimit(d.Limiter, "build", 600, time.Minute), urls.createDefault)
	api.POST("/sources/:name/urls", httpmiddleware.RateLimit(d.Limiter, "build", 600, time.Minute), urls.createForSource)
	api.GET("/sources/:name/url", httpmiddleware.RateLimit(d.Limiter, "build", 600, time.Minute), urls.getForSource)
	api.POST("/login", httpmiddleware.RateLimit(d.Limiter, "login", 5, time.Minute), NewLoginHandler(d.Operators, d.Tokens))

	admin := api.Group("/admin")
	admin.Use(httpmiddleware.AuthRequired(d.Tokens), httpmiddleware.RequireRole(repo.RoleAdmin))
	admin.POST("/sources", NewCreateSourceHandler(d.Sources))
	admin.GET("/sources", NewListSourcesHandler(d.Sources))
	admin.GET("/sources/:name", NewGetSourceHandler(d.Sources))
	admin.POST("/sources/:name/disable", NewDisableSourceHandler(d.Sources, d.Registry))
	admin.DELETE("/sources/:name", NewDeleteSourceHandler(d.Sources, d.Registry))
	admin.GET("/sources/:name/events", NewListEventsHandler(d.Sources))
	admin.POST("/operators", NewCreateOperatorHandler(d.Operators))
}
