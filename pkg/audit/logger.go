package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/logger"
)

// Options tune batching. Zero values take defaults.
type Options struct {
	BufferSize     int
	BatchSize      int
	BatchTimeout   time.Duration
	StorageTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 200 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	return o
}

// Logger queues events for a background writer. Log never blocks: when the
// buffer is full the event is dropped, counted and logged.
type Logger struct {
	storage Storage
	opts    Options
	log     *slog.Logger
	filter  *MetadataFilter
	now     func() time.Time

	requestID func(context.Context) string
	ip        func(context.Context) string
	userAgent func(context.Context) string

	events   chan Event
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Logger)

func WithOptions(o Options) Option {
	return func(l *Logger) { l.opts = o }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Logger) { l.log = log }
}

func WithMetadataFilter(f *MetadataFilter) Option {
	return func(l *Logger) { l.filter = f }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func WithRequestIDExtractor(fn func(context.Context) string) Option {
	return func(l *Logger) { l.requestID = fn }
}

func WithIPExtractor(fn func(context.Context) string) Option {
	return func(l *Logger) { l.ip = fn }
}

func WithUserAgentExtractor(fn func(context.Context) string) Option {
	return func(l *Logger) { l.userAgent = fn }
}

// NewLogger starts the background writer. Call Close on shutdown to flush.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{
		storage: storage,
		filter:  NewMetadataFilter(),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.opts = l.opts.withDefaults()
	l.log = logger.OrDefault(l.log).With(logger.Component("audit"))
	l.events = make(chan Event, l.opts.BufferSize)

	l.wg.Add(1)
	go l.worker()
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) {
	l.enqueue(ctx, action, ResultSuccess, nil, opts)
}

// LogFailure records a failed action with the error as reason.
func (l *Logger) LogFailure(ctx context.Context, action string, err error, opts ...EventOption) {
	l.enqueue(ctx, action, ResultFailure, err, opts)
}

func (l *Logger) enqueue(ctx context.Context, action string, result Result, cause error, opts []EventOption) {
	e := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if l.requestID != nil {
		e.RequestID = l.requestID(ctx)
	}
	if l.ip != nil {
		e.IP = l.ip(ctx)
	}
	if l.userAgent != nil {
		e.UserAgent = l.userAgent(ctx)
	}
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		l.log.WarnContext(ctx, "invalid audit event", logger.Error(err))
		return
	}
	e.Metadata = l.filter.Filter(e.Metadata)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(ctx, e, ErrLoggerClosed)
		return
	}
	select {
	case l.events <- e:
	default:
		l.drop(ctx, e, ErrBufferFull)
	}
}

func (l *Logger) drop(ctx context.Context, e Event, reason error) {
	eventsDropped.Inc()
	l.log.WarnContext(ctx, "audit event dropped", logger.Event(e.Action), logger.Error(reason))
}

func (l *Logger) worker() {
	defer l.wg.Done()

	batch := make([]Event, 0, l.opts.BatchSize)
	ticker := time.NewTicker(l.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.StorageTimeout)
		err := l.storage.StoreBatch(ctx, batch)
		cancel()
		if err != nil {
			writeErrors.Inc()
			l.log.Error("failed to persist audit events", slog.Int("count", len(batch)), logger.Error(err))
		} else {
			eventsWritten.Add(float64(len(batch)))
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-l.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= l.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting events and waits for queued events to be written,
// or for ctx to expire.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.events)
	}
	l.mu.Unlock()

	go func() {
		l.wg.Wait()
		l.doneOnce.Do(func() { close(l.done) })
	}()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
