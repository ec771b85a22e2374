package clientip

import (
	"context"
	"net/http"
)

// Client is what Middleware records about the caller.
type Client struct {
	IP        string
	UserAgent string
}

type ctxKey struct{}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClientFrom(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(ctxKey{}).(Client)
	return c, ok
}

// IPFrom returns the caller IP stored in ctx, or "".
func IPFrom(ctx context.Context) string {
	c, _ := ClientFrom(ctx)
	return c.IP
}

// UserAgentFrom returns the caller User-Agent stored in ctx, or "".
func UserAgentFrom(ctx context.Context) string {
	c, _ := ClientFrom(ctx)
	return c.UserAgent
}

// Middleware records the IP resolved by res and the User-Agent header.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	if res == nil {
		res = defaultResolver
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClient(r.Context(), Client{IP: res.IP(r), UserAgent: r.UserAgent()})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromRequest returns the IP stored by Middleware, resolving it with the
// default resolver when the middleware did not run.
func FromRequest(r *http.Request) string {
	if ip := IPFrom(r.Context()); ip != "" {
		return ip
	}
	return GetIP(r)
}
