package httpapi

import (
	"net/http"
	"strconv"

	"ixurl.local/gee"
)

// queryLimit reads ?limit= in [1, max]. On failure the 400 is already written.
func queryLimit(ctx *gee.Context, def, max int) (int, bool) {
	l := ctx.Query("limit")
	if l == "" {
		return def, true
	}
	n, err := strconv.Atoi(l)
	if err != nil || n <= 0 || n > max {
		ctx.AbortWithError(http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return n, true
}

// queryCursor reads ?cursor=, 0 when absent.
func queryCursor(ctx *gee.Context) (int64, bool) {
	c := ctx.Query("cursor")
	if c == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(c, 10, 64)
	if err != nil || n <= 0 {
		ctx.AbortWithError(http.StatusBadRequest, "invalid cursor")
		return 0, false
	}
	return n, true
}
