package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config is the environment driven logger configuration.
type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"authcore"`
	Level   string `env:"LOG_LEVEL"` // overrides the environment default when set
}

// ContextExtractor pulls one attribute out of a request context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// Option configures New.
type Option func(*settings)

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	static     []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat panics on anything but json or text so a bad value stops
// startup.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

// WithOutput ignores a nil writer.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithAttr adds attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextExtractors adds attributes read from the context of each
// record. Nil extractors are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithEnvironment picks debug text output for development and info JSON
// output for staging and production, and tags records with env and service.
func WithEnvironment(env, service string) Option {
	return func(s *settings) {
		name := "development"
		s.level, s.format = slog.LevelDebug, FormatText
		switch strings.ToLower(env) {
		case "production", "prod":
			name = "production"
			s.level, s.format = slog.LevelInfo, FormatJSON
		case "staging", "stage":
			name = "staging"
			s.level, s.format = slog.LevelInfo, FormatJSON
		}
		if service != "" {
			s.static = append(s.static, slog.String("service", service))
		}
		s.static = append(s.static, slog.String("env", name))
	}
}

// New builds a logger. Without options it writes INFO and above as JSON to
// stdout. Values under secret-looking keys are always masked.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	ho := &slog.HandlerOptions{Level: s.level, ReplaceAttr: redact}
	var h slog.Handler = slog.NewJSONHandler(s.out, ho)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, ho)
	}
	if len(s.static) > 0 {
		h = h.WithAttrs(s.static)
	}
	if len(s.extractors) > 0 {
		h = contextHandler{Handler: h, extractors: s.extractors}
	}
	return slog.New(h)
}

// NewFromConfig is New with the environment defaults from c applied first.
func NewFromConfig(c Config, opts ...Option) (*slog.Logger, error) {
	base := []Option{WithEnvironment(c.Env, c.Service)}
	if c.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("logger: invalid LOG_LEVEL %q: %w", c.Level, err)
		}
		base = append(base, WithLevel(lvl))
	}
	return New(append(base, opts...)...), nil
}

func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// ContextValue logs the string get returns under name, when non-empty.
func ContextValue(name string, get func(context.Context) string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		v := get(ctx)
		return slog.String(name, v), v != ""
	}
}

type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if a, ok := ex(ctx); ok {
			rec.AddAttrs(a)
		}
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}

var secretKeys = map[string]struct{}{
	"password":     {},
	"new_password": {},
	"token":        {},
	"link_token":   {},
	"secret":       {},
	"code":         {},
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
