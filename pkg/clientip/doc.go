// Package clientip extracts the originating client's IP address from an
// *http.Request when the service runs behind reverse proxies.
//
// A Resolver consults a configured list of trusted headers in priority order
// and falls back to RemoteAddr. With no headers configured, which is the
// default, only the socket peer counts. List valued headers such as
// X-Forwarded-For yield their right-most valid address. Only trust headers
// that your edge proxy sets; a header passed through from clients can be
// spoofed.
//
// Middleware stores the resolved address in the request context, where
// IPFrom and FromRequest retrieve it. Rate limiting and audit
// logging both key on this value.
//
// # Usage
//
//	res := clientip.NewResolver(clientip.ProxyHeaders...)
//	r.Use(clientip.Middleware(res))
//
//	ip := clientip.FromRequest(req)
package clientip
