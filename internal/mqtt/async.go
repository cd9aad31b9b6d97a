package mqtt

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is how many outbound messages Async holds while the
// broker is slow to acknowledge.
const DefaultQueueSize = 32

// ErrClosed is returned when publishing on a closed Async.
var ErrClosed = errors.New("publisher closed")

type asyncMsg struct {
	telemetry *Telemetry
	system    *SystemEvent
}

// Async hands messages to a background goroutine that publishes them on
// next, so callers never wait on the broker. When the queue is full the
// oldest message is dropped.
type Async struct {
	next  Publisher
	log   zerolog.Logger
	queue chan asyncMsg
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	dropped  int
	overflow bool
}

// NewAsync starts publishing on next with room for size pending messages.
func NewAsync(next Publisher, size int, log zerolog.Logger) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:  next,
		log:   log,
		queue: make(chan asyncMsg, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for m := range a.queue {
		switch {
		case m.telemetry != nil:
			if err := a.next.PublishTelemetry(*m.telemetry); err != nil {
				a.log.Error().Err(err).Msg("telemetry publish error")
			}
		case m.system != nil:
			if err := a.next.PublishSystem(*m.system); err != nil {
				a.log.Error().Err(err).Str("event", m.system.Event).Msg("system publish error")
			}
		}
	}
}

func (a *Async) enqueue(m asyncMsg) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- m:
		a.overflow = false
		return nil
	default:
	}

	if !a.overflow {
		a.log.Warn().Int("capacity", cap(a.queue)).Msg("publish queue full, dropping oldest")
		a.overflow = true
	}
	for {
		select {
		case <-a.queue:
			a.dropped++
		default:
		}
		select {
		case a.queue <- m:
			return nil
		default:
		}
	}
}

// PublishTelemetry queues t. Broker errors are logged, not returned.
func (a *Async) PublishTelemetry(t Telemetry) error {
	return a.enqueue(asyncMsg{telemetry: &t})
}

// PublishSystem queues event. Broker errors are logged, not returned.
func (a *Async) PublishSystem(event SystemEvent) error {
	return a.enqueue(asyncMsg{system: &event})
}

// Dropped reports how many messages were discarded because the queue was full.
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// IsConnected reports the wrapped publisher's connection state, or false
// when it does not track one.
func (a *Async) IsConnected() bool {
	if cs, ok := a.next.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}

// Close publishes whatever is still queued, then closes the wrapped
// publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
