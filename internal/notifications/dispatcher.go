package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/pkg/logger"
	"github.com/charlesng35/groupdesk/pkg/metrics"
)

const (
	defaultWorkers         = 2
	defaultBuffer          = 256
	defaultDeliveryTimeout = 10 * time.Second
)

// Sink delivers events to one downstream channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the number of delivery goroutines.
func WithWorkers(workers int) DispatcherOption {
	return func(d *Dispatcher) {
		if workers > 0 {
			d.workers = workers
		}
	}
}

// WithBuffer sets how many events may wait for delivery before new ones are dropped.
func WithBuffer(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.buffer = size
		}
	}
}

// WithDeliveryTimeout bounds the time one event may spend in the sinks.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithSinks registers delivery sinks.
func WithSinks(sinks ...Sink) DispatcherOption {
	return func(d *Dispatcher) {
		for _, sink := range sinks {
			if sink != nil {
				d.sinks = append(d.sinks, sink)
			}
		}
	}
}

// Dispatcher fans committed booking events out to its sinks on background workers.
// Publish never blocks: when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	sinks   []Sink
	workers int
	buffer  int
	timeout time.Duration
	log     *zap.Logger

	mu      sync.RWMutex
	queue   chan Event
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher. Call Start before publishing.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		workers: defaultWorkers,
		buffer:  defaultBuffer,
		timeout: defaultDeliveryTimeout,
		log:     logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan Event, d.buffer)
	return d
}

// Start launches the delivery workers. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Publish enqueues an event for asynchronous delivery.
func (d *Dispatcher) Publish(_ context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.drop(event, "queue full")
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	metrics.NotificationsDropped.Inc()
	d.log.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.BookingID),
	)
}

// Close stops accepting events and waits until queued events were delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for event := range d.queue {
		if err := d.deliver(event); err != nil {
			d.log.Error("notification delivery failed",
				zap.String("event", string(event.Type)),
				zap.String("booking_id", event.BookingID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(event Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var errs error
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = multierr.Append(errs, &SinkError{Sink: sink.Name(), Err: err})
		}
	}
	return errs
}

// SinkError attributes a delivery failure to its sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
