package imgix

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Helper builds a single-domain imgix URL.
//
// A Helper is cheap and meant to be used by one goroutine. Parameters can be
// changed after construction; String always recomputes the URL from the
// current state.
type Helper struct {
	scheme       string
	domain       string
	path         string
	signKey      string
	libraryParam bool
	params       Params
}

// NewHelper creates a Helper for domain and path. Null and false values in
// params are dropped, as SetParameter would.
func NewHelper(domain, path string, params Params, opts ...Option) (*Helper, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newHelper(domain, path, params, o), nil
}

func newHelper(domain, path string, params Params, o options) *Helper {
	h := &Helper{
		scheme:       o.scheme,
		domain:       domain,
		path:         path,
		signKey:      o.signKey,
		libraryParam: o.libraryParam,
		params:       make(Params, len(params)),
	}
	for k, v := range params {
		h.SetParameter(k, v)
	}
	return h
}

// SetParameter sets key to v. Setting null or false deletes the key.
func (h *Helper) SetParameter(key string, v Value) {
	if v.Suppressed() {
		h.DeleteParameter(key)
		return
	}
	h.params[key] = v
}

// DeleteParameter removes key. Missing keys are ignored.
func (h *Helper) DeleteParameter(key string) {
	delete(h.params, key)
}

// Params returns a copy of the current parameters.
func (h *Helper) Params() Params {
	out := make(Params, len(h.params))
	for k, v := range h.params {
		out[k] = v
	}
	return out
}

// String returns the encoded and, with a sign key, signed URL.
func (h *Helper) String() string {
	path := encodePath(h.path)
	query := h.query()

	if h.signKey != "" {
		sig := signature(h.signKey, "/"+path, query)
		if query == "" {
			query = "s=" + sig
		} else {
			query += "&s=" + sig
		}
	}

	var b strings.Builder
	b.Grow(len(h.scheme) + len(h.domain) + len(path) + len(query) + 5)
	b.WriteString(h.scheme)
	b.WriteString("://")
	b.WriteString(h.domain)
	b.WriteByte('/')
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// query renders the sorted, escaped parameters without the signature.
func (h *Helper) query() string {
	rendered := make(map[string]string, len(h.params)+1)
	for k, v := range h.params {
		rendered[k] = renderParam(k, v)
	}
	if h.libraryParam {
		rendered["ixlib"] = libraryTag + "-" + Version
	}

	var b strings.Builder
	for i, k := range sortedKeys(rendered) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeSegment(k))
		b.WriteByte('=')
		b.WriteString(escapeSegment(rendered[k]))
	}
	return b.String()
}

// renderParam turns a value into its pre-escape string. Keys ending in "64"
// carry unpadded base64url.
func renderParam(key string, v Value) string {
	s := v.String()
	if strings.HasSuffix(key, "64") {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}
	return s
}

// signature is the hex MD5 of key + path, followed by "?" + query when the
// query is not empty. path is the encoded path including its leading slash.
func signature(key, path, query string) string {
	h := md5.New()
	h.Write([]byte(key))
	h.Write([]byte(path))
	if query != "" {
		h.Write([]byte{'?'})
		h.Write([]byte(query))
	}
	return hex.EncodeToString(h.Sum(nil))
}
