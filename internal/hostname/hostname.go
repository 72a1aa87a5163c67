// Package hostname turns tab URLs into the hostnames usage is keyed by and
// canonicalizes block list entries.
package hostname

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
)

var (
	// ErrNoHostname is returned when a URL has no host component
	ErrNoHostname = errors.New("url has no hostname")

	// ErrInvalid is returned for block list entries that are not domain names
	ErrInvalid = errors.New("invalid hostname")
)

// Resolver caches URL to hostname resolution
type Resolver struct {
	cache *lru.Cache[string, string]
}

// NewResolver creates a resolver remembering up to size URLs
func NewResolver(size int) (*Resolver, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create hostname cache: %w", err)
	}
	return &Resolver{cache: cache}, nil
}

// Resolve returns the lowercased hostname of rawURL without a trailing dot
func (r *Resolver) Resolve(rawURL string) (string, error) {
	if host, ok := r.cache.Get(rawURL); ok {
		return host, nil
	}

	host, err := Resolve(rawURL)
	if err != nil {
		return "", err
	}

	r.cache.Add(rawURL, host)
	return host, nil
}

// Resolve parses rawURL without caching
func Resolve(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHostname, rawURL)
	}
	return host, nil
}

// Canonical normalizes a user supplied site into a bare lowercase hostname.
// Full URLs are accepted and reduced to their host.
func Canonical(site string) (string, error) {
	site = strings.ToLower(strings.TrimSpace(site))
	if strings.Contains(site, "://") {
		host, err := Resolve(site)
		if err != nil {
			return "", err
		}
		site = host
	}

	site = strings.TrimSuffix(site, ".")
	if site == "" || strings.ContainsAny(site, " /\\:@") {
		return "", fmt.Errorf("%w: %q", ErrInvalid, site)
	}
	if _, ok := dns.IsDomainName(site); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalid, site)
	}

	return strings.TrimSuffix(dns.CanonicalName(site), "."), nil
}
