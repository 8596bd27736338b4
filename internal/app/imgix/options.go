package imgix

import (
	"errors"
	"log/slog"
)

// Version is reported in the ixlib parameter as "go-<Version>".
const Version = "1.0.0"

const libraryTag = "go"

var (
	ErrNoDomains                = errors.New("imgix: at least one domain is required")
	ErrPathSignatureUnsupported = errors.New("imgix: path signatures are not supported")
)

// SignMode is the legacy signing mode switch. Only query signing exists;
// setting any mode is deprecated and logged.
type SignMode int

const (
	SignModeQuery SignMode = iota
	SignModePath
)

func (m SignMode) String() string {
	switch m {
	case SignModeQuery:
		return "query"
	case SignModePath:
		return "path"
	default:
		return "unknown"
	}
}

type options struct {
	scheme       string
	signKey      string
	shard        ShardStrategy
	libraryParam bool
	signMode     *SignMode
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		scheme:       "https",
		shard:        ShardCRC,
		libraryParam: true,
	}
}

// Option configures a Builder or a Helper.
type Option func(*options)

// WithHTTPS selects https (default) or http.
func WithHTTPS(on bool) Option {
	return func(o *options) {
		if on {
			o.scheme = "https"
		} else {
			o.scheme = "http"
		}
	}
}

func WithScheme(scheme string) Option {
	return func(o *options) { o.scheme = scheme }
}

// WithSignKey enables signing. An empty key disables it.
func WithSignKey(key string) Option {
	return func(o *options) { o.signKey = key }
}

// WithShardStrategy is only meaningful for a Builder.
func WithShardStrategy(s ShardStrategy) Option {
	return func(o *options) { o.shard = s }
}

// WithLibraryParam toggles the ixlib parameter (default on).
func WithLibraryParam(on bool) Option {
	return func(o *options) { o.libraryParam = on }
}

// Deprecated: only query signing is supported. Passing a mode logs a warning.
func WithSignMode(m SignMode) Option {
	return func(o *options) { o.signMode = &m }
}

// WithLogger sets the destination for diagnostics such as deprecation warnings.
// Without it diagnostics are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.signMode != nil {
		o.logger.Warn("imgix: sign mode option is deprecated and will be removed",
			"sign_mode", o.signMode.String())
		if *o.signMode != SignModeQuery {
			return o, ErrPathSignatureUnsupported
		}
	}
	return o, nil
}
