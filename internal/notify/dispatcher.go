package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"binarymlm/internal/metrics"
)

// Dispatcher fans events out to sinks from a bounded queue. When the queue is
// full the event is dropped.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.Collectors

	wg   sync.WaitGroup
	once sync.Once
}

func NewDispatcher(buffer int, m *metrics.Collectors, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		timeout: 10 * time.Second,
		metrics: m,
	}
}

func (d *Dispatcher) Notify(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case d.queue <- ev:
	default:
		log.Warn().Str("event", ev.Name).Uint("user_id", ev.UserID).Msg("notification queue full, dropping event")
		d.metrics.ObserveNotificationDropped(ev.Name)
	}
}

// Start runs the delivery loop until ctx is done, then drains what is queued.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		d.wg.Add(1)
		go d.loop(ctx)
	})
}

// Wait blocks until the delivery loop has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(context.WithoutCancel(ctx), ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := sink.Handle(sinkCtx, ev); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Str("event", ev.Name).Msg("notification delivery failed")
		}
		cancel()
	}
}
