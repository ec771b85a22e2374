package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/logsmart/authcore/pkg/logger"
)

var (
	ErrStart    = errors.New("httpserver: start failed")
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
	ErrRunning  = errors.New("httpserver: already running")
)

// Server serves one handler until its context is cancelled.
type Server struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	log             *slog.Logger
	onStart         []func(addr string)
	onStop          []func()

	mu       sync.Mutex
	srv      *http.Server
	stopOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. It panics on an empty address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: WithAddr requires an address")
	}
	return func(s *Server) { s.addr = addr }
}

// WithTimeouts sets the read, write and idle timeouts. Zero keeps the
// current value.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = cmpOr(read, s.readTimeout)
		s.writeTimeout = cmpOr(write, s.writeTimeout)
		s.idleTimeout = cmpOr(idle, s.idleTimeout)
	}
}

// WithShutdownTimeout bounds the graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = cmpOr(d, s.shutdownTimeout) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// OnStart registers fn to run with the bound address once listening.
func OnStart(fn func(addr string)) Option {
	return func(s *Server) { s.onStart = append(s.onStart, fn) }
}

// OnStop registers fn to run after shutdown completes.
func OnStop(fn func()) Option {
	return func(s *Server) { s.onStop = append(s.onStop, fn) }
}

// New returns a Server listening on :8000 by default.
func New(opts ...Option) *Server {
	s := &Server{
		addr:            ":8000",
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Run listens on the configured address and serves handler until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	return s.Serve(ctx, l, handler)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	s.srv = &http.Server{
		Handler:           handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
	}
	srv := s.srv
	s.mu.Unlock()

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	addr := l.Addr().String()
	s.log.InfoContext(ctx, "http server listening", slog.String("addr", addr))
	for _, fn := range s.onStart {
		fn(addr)
	}

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		if serr := s.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			return serr
		}
		err = <-served
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	return nil
}

// Shutdown drains in-flight requests within the shutdown timeout. Calls
// after the first are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
		if err = srv.Shutdown(ctx); err != nil {
			err = fmt.Errorf("%w: %w", ErrShutdown, err)
		}
		s.log.InfoContext(ctx, "http server stopped")
		for _, fn := range s.onStop {
			fn()
		}
	})
	return err
}

func cmpOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
