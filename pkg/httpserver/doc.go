// Package httpserver runs an http.Server bound to a context and provides the
// /health handler.
//
// Run blocks until the context is cancelled and then shuts down within the
// configured timeout. Process signals are handled by the caller, usually with
// signal.NotifyContext.
package httpserver
