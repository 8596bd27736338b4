package imgix

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

var (
	ErrInvalidSourceName = errors.New("invalid source name")
	ErrInvalidDomain     = errors.New("invalid domain")
	ErrInvalidStrategy   = errors.New("invalid shard strategy")
)

// Source is a named, stored builder configuration. Clients build URLs against
// a source by name and never see its sign key.
type Source struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Domains             []string      `json:"domains"`
	UseHTTPS            bool          `json:"use_https"`
	SignKey             string        `json:"sign_key,omitempty"`
	ShardStrategy       ShardStrategy `json:"shard_strategy"`
	IncludeLibraryParam bool          `json:"include_library_param"`
	Disabled            bool          `json:"disabled"`
	URLCount            int64         `json:"url_count"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Signed reports whether URLs built for the source are signed.
func (s Source) Signed() bool { return s.SignKey != "" }

// Redacted returns a copy safe to hand to API clients.
func (s Source) Redacted() Source {
	s.SignKey = ""
	s.Domains = append([]string(nil), s.Domains...)
	return s
}

// NewBuilder returns a Builder configured from the source.
func (s Source) NewBuilder(logger *slog.Logger) (*Builder, error) {
	return NewBuilder(s.Domains,
		WithHTTPS(s.UseHTTPS),
		WithSignKey(s.SignKey),
		WithShardStrategy(s.ShardStrategy),
		WithLibraryParam(s.IncludeLibraryParam),
		WithLogger(logger),
	)
}

var sourceNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

func ValidateSourceName(name string) error {
	if !sourceNameRe.MatchString(name) {
		return ErrInvalidSourceName
	}
	return nil
}

// NormalizeDomain turns a user supplied host into the form used in URLs:
// lowercase ASCII, no trailing dot, internationalized names in punycode.
// Schemes, paths, ports and userinfo are rejected.
func NormalizeDomain(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if strings.ContainsAny(host, "/:@?# ") {
		return "", fmt.Errorf("%w: %q must be a bare host name", ErrInvalidDomain, raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w: idna: %v", ErrInvalidDomain, err)
		}
		host = ascii
	}
	host = strings.ToLower(host)
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
		}
	}
	return host, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// ValidateSource checks the name and strategy and normalizes the domains in place.
func ValidateSource(s *Source) error {
	s.Name = strings.TrimSpace(s.Name)
	if err := ValidateSourceName(s.Name); err != nil {
		return err
	}
	if len(s.Domains) == 0 {
		return ErrNoDomains
	}
	for i, d := range s.Domains {
		n, err := NormalizeDomain(d)
		if err != nil {
			return err
		}
		s.Domains[i] = n
	}
	if s.ShardStrategy != ShardCRC && s.ShardStrategy != ShardCycle {
		return ErrInvalidStrategy
	}
	return nil
}
