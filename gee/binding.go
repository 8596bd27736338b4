package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ShouldBindJSON decodes exactly one JSON value into dst. Unknown fields are
// rejected and numbers inside interface values decode as json.Number.
func (c *Context) ShouldBindJSON(dst any) error {
	decoder := json.NewDecoder(c.Req.Body)
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON value")
	}
	return nil
}

// BindJSON is ShouldBindJSON that answers 400 on failure.
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithError(http.StatusBadRequest, "invalid json")
		return err
	}
	return nil
}
