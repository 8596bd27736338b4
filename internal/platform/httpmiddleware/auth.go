package httpmiddleware

import (
	"net/http"
	"strings"

	"ixurl.local/gee"
	"ixurl.local/internal/platform/auth"
)

// parseBearer returns the token from "Bearer <token>", or "" when malformed.
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// AuthRequired rejects requests without a valid operator token.
func AuthRequired(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		tokenStr := ctx.Req.Header.Get("Authorization")
		if tokenStr == "" {
			ctx.AbortWithError(http.StatusUnauthorized, "missing authorization header")
			return
		}
		token := parseBearer(tokenStr)
		if token == "" {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid authorization format")
			return
		}
		claim, err := ts.Verify(token)
		if err != nil {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid token")
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), auth.Identity{
			UserID: claim.UserID,
			Role:   claim.Role,
		}))
		ctx.Next()
	}
}

// AuthOptional attaches the identity when a valid token is present and
// otherwise continues anonymously.
func AuthOptional(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		tokenStr := ctx.Req.Header.Get("Authorization")
		if tokenStr == "" {
			ctx.Next()
			return
		}
		token := parseBearer(tokenStr)
		if token == "" {
			ctx.Next()
			return
		}
		claim, err := ts.Verify(token)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), auth.Identity{
			UserID: claim.UserID,
			Role:   claim.Role,
		}))
		ctx.Next()
	}
}

func RequireRole(role string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		if id.Role != role {
			ctx.AbortWithError(http.StatusForbidden, "forbidden")
			return
		}
		ctx.Next()
	}
}
