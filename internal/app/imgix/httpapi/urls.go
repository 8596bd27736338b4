package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"ixurl.local/gee"
	"ixurl.local/internal/app/imgix"
	"ixurl.local/internal/app/imgix/repo"
	"ixurl.local/internal/app/imgix/stats"
	"ixurl.local/internal/platform/httpmiddleware"
	"ixurl.local/internal/platform/metrics"
	"ixurl.local/internal/platform/trace"
)

const defaultSourceLabel = "default"

type BuildRequest struct {
	Path   string         `json:"path"`
	Params map[string]any `json:"params,omitempty"`
}

type BuildResponse struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

type urlHandlers struct {
	deps Deps
}

func (h *urlHandlers) createDefault(ctx *gee.Context) {
	if h.deps.Default == nil {
		ctx.AbortWithError(http.StatusServiceUnavailable, "default builder not configured")
		return
	}
	var req BuildRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	params, ok := paramsFromRequest(ctx, req)
	if !ok {
		return
	}
	h.build(ctx, "", h.deps.Default, req.Path, params)
}

func (h *urlHandlers) createForSource(ctx *gee.Context) {
	var req BuildRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	params, ok := paramsFromRequest(ctx, req)
	if !ok {
		return
	}
	b, ok := h.sourceBuilder(ctx)
	if !ok {
		return
	}
	h.build(ctx, ctx.Param("name"), b, req.Path, params)
}

// getForSource takes the path from ?path= and every other query key as a
// string parameter. Repeated keys use the first value.
func (h *urlHandlers) getForSource(ctx *gee.Context) {
	q := ctx.Req.URL.Query()
	path := q.Get("path")
	if path == "" {
		ctx.AbortWithError(http.StatusBadRequest, "path is required")
		return
	}
	params := make(imgix.Params, len(q))
	for k, vs := range q {
		if k == "path" || len(vs) == 0 {
			continue
		}
		params[k] = imgix.String(vs[0])
	}
	b, ok := h.sourceBuilder(ctx)
	if !ok {
		return
	}
	h.build(ctx, ctx.Param("name"), b, path, params)
}

func (h *urlHandlers) sourceBuilder(ctx *gee.Context) (*imgix.Builder, bool) {
	name := ctx.Param("name")
	src, err := h.deps.Sources.Resolve(ctx.Req.Context(), name)
	if err != nil {
		if errors.Is(err, repo.ErrSourceNotFound) {
			ctx.AbortWithError(http.StatusNotFound, "source not found")
			return nil, false
		}
		h.deps.Logger.Error("resolve source failed", "source", name, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
		return nil, false
	}
	b, err := h.deps.Registry.Get(src)
	if err != nil {
		h.deps.Logger.Error("builder for source failed", "source", name, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return b, true
}

func (h *urlHandlers) build(ctx *gee.Context, source string, b *imgix.Builder, path string, params imgix.Params) {
	if path == "" {
		ctx.AbortWithError(http.StatusBadRequest, "path is required")
		return
	}

	label := source
	if label == "" {
		label = defaultSourceLabel
	}
	_, span := trace.Tracer("ixurl/httpapi").Start(ctx.Req.Context(), "imgix.build",
		oteltrace.WithAttributes(
			attribute.String("imgix.source", label),
			attribute.String("imgix.strategy", b.Strategy().String()),
			attribute.Int("imgix.params", len(params)),
		))
	built := b.Build(path, params)
	span.SetAttributes(attribute.String("imgix.domain", built.Domain))
	span.End()

	metrics.URLsBuiltTotal.WithLabelValues(label, b.Strategy().String(), strconv.FormatBool(b.Signed())).Inc()
	metrics.ShardSelections.WithLabelValues(label, built.Domain).Inc()
	h.deps.Collector.Collect(stats.BuildEvent{
		Source:  source,
		Domain:  built.Domain,
		Path:    path,
		Signed:  b.Signed(),
		BuiltAt: time.Now(),
		IP:      httpmiddleware.ClientIP(ctx.Req),
	})

	ctx.JSON(http.StatusOK, BuildResponse{URL: built.URL, Domain: built.Domain})
}

// paramsFromRequest converts JSON params. A value that cannot be a parameter
// is a 400 naming the key.
func paramsFromRequest(ctx *gee.Context, req BuildRequest) (imgix.Params, bool) {
	params, err := imgix.ParamsFromMap(req.Params)
	if err != nil {
		var encErr *imgix.EncodingError
		if errors.As(err, &encErr) {
			ctx.AbortWithError(http.StatusBadRequest, "unsupported value for parameter "+strconv.Quote(encErr.Key))
			return nil, false
		}
		ctx.AbortWithError(http.StatusBadRequest, err.Error())
		return nil, false
	}
	return params, true
}
