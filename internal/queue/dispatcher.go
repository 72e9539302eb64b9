package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"
)

// Sink is where the dispatcher delivers events.  *Publisher is the
// production sink.
type Sink interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type envelope struct {
	key     string
	payload any
}

// Dispatcher decouples event emission from delivery.  Publish never
// blocks: when the buffer is full the event is dropped and logged, so a
// slow or unreachable broker cannot stall a scheduling command.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	ch      chan envelope
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher returns a dispatcher with room for buffer pending events.
// Call Start to begin delivery.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		sink:    sink,
		timeout: 5 * time.Second,
		ch:      make(chan envelope, buffer),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.PublishJSON(ctx, ev.key, ev.payload); err != nil {
			log.Errorf("events: publish %s failed: %v", ev.key, err)
		}
		cancel()
	}
}

// Publish enqueues an event for delivery.
func (d *Dispatcher) Publish(key string, payload any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.ch <- envelope{key: key, payload: payload}:
	default:
		d.dropped.Add(1)
		log.Warnf("events: buffer full, dropped %s", key)
	}
}

// Dropped returns the number of events discarded so far.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Close stops accepting events and waits until the buffered ones were
// handed to the sink, or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
