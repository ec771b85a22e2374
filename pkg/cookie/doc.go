// Package cookie writes the session and OAuth link cookies with consistent
// attributes. Each cookie has fixed attributes; only the session cookie
// domain is configurable.
package cookie
