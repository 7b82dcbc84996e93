package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher detaches publishing from the calling flow: Emit enqueues and
// returns immediately, a single worker drains the queue into the wrapped
// Publisher. Publish errors are logged and counted, never surfaced to the
// emitting flow.
type Dispatcher struct {
	cfg       Config
	publisher Publisher
	log       *zap.Logger
	ch        chan Published
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher wraps publisher. A nil publisher gets NoOpPublisher, a nil
// logger gets zap.NewNop.
func NewDispatcher(cfg Config, publisher Publisher, log *zap.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:       cfg,
		publisher: publisher,
		log:       log,
		ch:        make(chan Published, cfg.BufferSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Published) {
	if err := d.publisher.Publish(context.Background(), event.Name, event.Payload, event.CausationID); err != nil {
		d.failed.Add(1)
		d.log.Warn("event publish failed",
			zap.String("event", event.Name),
			zap.String("causation_id", event.CausationID),
			zap.Error(err),
		)
	}
}

// Emit enqueues an event. With DropIfFull set, a full buffer drops the event
// instead of blocking the caller.
func (d *Dispatcher) Emit(ctx context.Context, name string, payload Payload, causationID string) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := Published{Name: name, Payload: payload, CausationID: causationID}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
			d.log.Warn("event dropped, buffer full", zap.String("event", name))
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed reports events the wrapped publisher returned an error for.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
