package imgix

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"sync"
)

// ShardStrategy decides which domain of a Builder serves a path.
type ShardStrategy int

const (
	// ShardCRC maps a path to a domain by the CRC-32 of the path, so one
	// image always hits the same domain.
	ShardCRC ShardStrategy = iota
	// ShardCycle hands out domains round-robin.
	ShardCycle
)

func (s ShardStrategy) String() string {
	switch s {
	case ShardCRC:
		return "crc"
	case ShardCycle:
		return "cycle"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s ShardStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ShardStrategy) UnmarshalText(text []byte) error {
	v, ok := ParseShardStrategy(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, text)
	}
	*s = v
	return nil
}

// ParseShardStrategy parses "crc" or "cycle", case-insensitively.
func ParseShardStrategy(s string) (ShardStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crc":
		return ShardCRC, true
	case "cycle":
		return ShardCycle, true
	default:
		return -1, false
	}
}

// Builder creates imgix URLs over one or more domains.
//
// Builders are long-lived and safe for concurrent use. The only mutable
// state is the cycle cursor, which is guarded by a mutex. Strategies other
// than ShardCRC and ShardCycle always select the first domain.
type Builder struct {
	domains []string
	opts    options

	mu     sync.Mutex
	cursor int
}

// BuiltURL is a URL together with the domain that was selected for it.
type BuiltURL struct {
	Domain string
	URL    string
}

func NewBuilder(domains []string, opts ...Option) (*Builder, error) {
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Builder{
		domains: append([]string(nil), domains...),
		opts:    o,
	}, nil
}

// SelectDomain picks the domain for path. With ShardCycle it advances the cursor.
func (b *Builder) SelectDomain(path string) string {
	switch b.opts.shard {
	case ShardCRC:
		sum := crc32.ChecksumIEEE([]byte(path))
		return b.domains[sum%uint32(len(b.domains))]
	case ShardCycle:
		b.mu.Lock()
		d := b.domains[b.cursor]
		b.cursor = (b.cursor + 1) % len(b.domains)
		b.mu.Unlock()
		return d
	default:
		return b.domains[0]
	}
}

// Build selects a domain and renders the URL for path.
func (b *Builder) Build(path string, params Params) BuiltURL {
	domain := b.SelectDomain(path)
	h := newHelper(domain, path, params, b.opts)
	return BuiltURL{Domain: domain, URL: h.String()}
}

func (b *Builder) CreateURL(path string, params Params) string {
	return b.Build(path, params).URL
}

// CreateURLFromMap is CreateURL for dynamically typed parameters. Conversion
// failures are reported as *EncodingError before any domain is selected.
func (b *Builder) CreateURLFromMap(path string, params map[string]any) (string, error) {
	p, err := ParamsFromMap(params)
	if err != nil {
		return "", err
	}
	return b.CreateURL(path, p), nil
}

// Domains returns a copy of the configured domains.
func (b *Builder) Domains() []string {
	return append([]string(nil), b.domains...)
}

func (b *Builder) Strategy() ShardStrategy {
	return b.opts.shard
}

// Signed reports whether URLs from this builder carry a signature.
func (b *Builder) Signed() bool {
	return b.opts.signKey != ""
}
