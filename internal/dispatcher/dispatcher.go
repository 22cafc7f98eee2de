// Package dispatcher fans reconciliation notifications out to subscribers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned when dispatching after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is one notification produced by a reconciliation pass.
type Event struct {
	Kind      string
	Frame     uint64
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	name       string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Named labels the handler in logs and metrics. Defaults to "<kind>#<n>".
func Named(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Dispatcher routes events to every handler subscribed to their kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	buffers  map[string]chan Event
	closed   bool
	wg       sync.WaitGroup

	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("handler", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register subscribes h to events of the given kind. Handlers of the same
// kind are invoked in registration order.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.name == "" {
		cfg.name = fmt.Sprintf("%s#%d", kind, len(d.handlers[kind]))
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(cfg.name, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(cfg.name, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[kind] = append(d.handlers[kind], handler)
}

// Dispatch delivers e to every handler registered for e.Kind and joins
// their errors. Events nobody subscribed to are ignored.
func (d *Dispatcher) Dispatch(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	hs := d.handlers[e.Kind]
	d.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasHandler returns true if at least one handler is registered for kind.
func (d *Dispatcher) HasHandler(kind string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind]) > 0
}

// Close stops accepting events and waits for buffered handlers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// withBuffer must be called with d.mu held.
func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)
	key := name
	for i := 2; ; i++ {
		if _, taken := d.buffers[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s(%d)", name, i)
	}
	d.buffers[key] = buffer
	name = key

	nameAttr := attribute.String("handler", name)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			_ = h(e)
			d.processed.Add(context.Background(), 1, metric.WithAttributes(nameAttr))
		}
	}()

	send := func(e Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}
		if blocking {
			buffer <- e
			return nil
		}
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(nameAttr))
			return fmt.Errorf("queue full: %s", name)
		}
	}
	return send
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "handler", name, "frame", e.Frame)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "handler", name, "frame", e.Frame, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "handler", name, "frame", e.Frame, "duration", time.Since(start))
		}

		return err
	}
}
