package clientip

import (
	"net"
	"net/http"
	"strings"
)

// ProxyHeaders is the usual list for a deployment behind a reverse proxy
// that sets both headers. It is not the default.
var ProxyHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// Config lists the proxy headers trusted to carry the client address.
// The default is empty, which trusts only the socket peer. Set
// TRUSTED_IP_HEADERS only when a proxy in front of the service overwrites or
// appends to those headers; otherwise callers choose their own address.
type Config struct {
	TrustedHeaders []string `env:"TRUSTED_IP_HEADERS" envSeparator:","`
}

// Resolver extracts the client IP from a request.
type Resolver struct {
	headers []string
}

// NewResolver creates a resolver trusting the given headers in priority order.
func NewResolver(headers ...string) *Resolver {
	hs := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			hs = append(hs, http.CanonicalHeaderKey(h))
		}
	}
	return &Resolver{headers: hs}
}

// NewFromConfig builds a resolver from Config.
func NewFromConfig(cfg Config) *Resolver {
	return NewResolver(cfg.TrustedHeaders...)
}

var defaultResolver = NewResolver()

// GetIP resolves the client IP from the socket peer.
func GetIP(r *http.Request) string {
	return defaultResolver.IP(r)
}

// IP returns the first valid address from the trusted headers, falling back
// to RemoteAddr. List headers such as X-Forwarded-For yield their right-most
// valid entry, the hop appended by the nearest proxy; entries to its left
// come from the client. Returns "" when nothing parses.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		hops := strings.Split(v, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			if parsed := parseIP(hops[i]); parsed != "" {
				return parsed
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an IP address string.
func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
