package httpapi

import (
	"errors"
	"net/http"

	"ixurl.local/gee"
	"ixurl.local/internal/app/imgix"
	"ixurl.local/internal/app/imgix/repo"
)

type CreateSourceRequest struct {
	Name                string   `json:"name"`
	Domains             []string `json:"domains"`
	UseHTTPS            *bool    `json:"use_https,omitempty"`
	SignKey             string   `json:"sign_key,omitempty"`
	ShardStrategy       string   `json:"shard_strategy,omitempty"`
	IncludeLibraryParam *bool    `json:"include_library_param,omitempty"`
}

// toSource applies the builder defaults: https on, crc, ixlib on.
func (r CreateSourceRequest) toSource() (imgix.Source, error) {
	src := imgix.Source{
		Name:                r.Name,
		Domains:             r.Domains,
		UseHTTPS:            true,
		SignKey:             r.SignKey,
		ShardStrategy:       imgix.ShardCRC,
		IncludeLibraryParam: true,
	}
	if r.UseHTTPS != nil {
		src.UseHTTPS = *r.UseHTTPS
	}
	if r.IncludeLibraryParam != nil {
		src.IncludeLibraryParam = *r.IncludeLibraryParam
	}
	if r.ShardStrategy != "" {
		s, ok := imgix.ParseShardStrategy(r.ShardStrategy)
		if !ok {
			return imgix.Source{}, imgix.ErrInvalidStrategy
		}
		src.ShardStrategy = s
	}
	return src, nil
}

func NewCreateSourceHandler(r SourceStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CreateSourceRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		src, err := req.toSource()
		if err != nil {
			ctx.AbortWithError(http.StatusBadRequest, err.Error())
			return
		}
		created, err := r.Create(ctx.Req.Context(), src)
		if err != nil {
			switch {
			case errors.Is(err, repo.ErrSourceExists):
				ctx.AbortWithError(http.StatusConflict, err.Error())
			case isValidationError(err):
				ctx.AbortWithError(http.StatusBadRequest, err.Error())
			default:
				ctx.AbortWithError(http.StatusInternalServerError, "source create failed")
			}
			return
		}
		ctx.JSON(http.StatusCreated, created.Redacted())
	}
}

func NewListSourcesHandler(r SourceStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		limit, ok := queryLimit(ctx, 50, 200)
		if !ok {
			return
		}
		list, err := r.List(ctx.Req.Context(), ctx.Query("after"), limit)
		if err != nil {
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]imgix.Source, 0, len(list))
		for _, s := range list {
			out = append(out, s.Redacted())
		}
		ctx.JSON(http.StatusOK, out)
	}
}

func NewGetSourceHandler(r SourceStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		src, err := r.FindByName(ctx.Req.Context(), ctx.Param("name"))
		if err != nil {
			if errors.Is(err, repo.ErrSourceNotFound) {
				ctx.AbortWithError(http.StatusNotFound, err.Error())
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		ctx.JSON(http.StatusOK, src.Redacted())
	}
}

func NewDisableSourceHandler(r SourceStore, registry *imgix.Registry) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		name := ctx.Param("name")
		if err := r.Disable(ctx.Req.Context(), name); err != nil {
			if errors.Is(err, repo.ErrSourceNotFound) {
				ctx.AbortWithError(http.StatusNotFound, err.Error())
				return
			}
			if errors.Is(err, repo.ErrAlreadyDisabled) {
				ctx.AbortWithError(http.StatusConflict, err.Error())
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		registry.Forget(name)
		ctx.Status(http.StatusOK)
	}
}

func NewDeleteSourceHandler(r SourceStore, registry *imgix.Registry) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		name := ctx.Param("name")
		if err := r.Delete(ctx.Req.Context(), name); err != nil {
			if errors.Is(err, repo.ErrSourceNotFound) {
				ctx.AbortWithError(http.StatusNotFound, err.Error())
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		registry.Forget(name)
		ctx.Status(http.StatusNoContent)
	}
}

func NewListEventsHandler(r SourceStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		limit, ok := queryLimit(ctx, 20, 100)
		if !ok {
			return
		}
		cursor, ok := queryCursor(ctx)
		if !ok {
			return
		}
		name := ctx.Param("name")
		resp, err := r.ListEvents(ctx.Req.Context(), name, limit, cursor)
		if err != nil {
			if errors.Is(err, repo.ErrSourceNotFound) {
				ctx.AbortWithError(http.StatusNotFound, err.Error())
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		ctx.JSON(http.StatusOK, resp)
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, imgix.ErrInvalidSourceName) ||
		errors.Is(err, imgix.ErrInvalidDomain) ||
		errors.Is(err, imgix.ErrInvalidStrategy) ||
		errors.Is(err, imgix.ErrNoDomains)
}
