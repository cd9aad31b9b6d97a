package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// gatedPublisher holds every publish until gate is closed, like a broker
// that has stopped acknowledging.
type gatedPublisher struct {
	*FakePublisher
	gate    chan struct{}
	entered chan struct{}
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{
		FakePublisher: NewFakePublisher(),
		gate:          make(chan struct{}),
		entered:       make(chan struct{}, 1),
	}
}

func (g *gatedPublisher) wait() {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
}

func (g *gatedPublisher) PublishTelemetry(t Telemetry) error {
	g.wait()
	return g.FakePublisher.PublishTelemetry(t)
}

func (g *gatedPublisher) PublishSystem(event SystemEvent) error {
	g.wait()
	return g.FakePublisher.PublishSystem(event)
}

func TestAsyncDoesNotBlockOnStalledBroker(t *testing.T) {
	gp := newGatedPublisher()
	a := NewAsync(gp, 4, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 10; i++ {
			if err := a.PublishTelemetry(Telemetry{PositionMs: int64(i)}); err != nil {
				t.Errorf("publish %d: %v", i, err)
			}
		}
		a.PublishSystem(SystemEvent{Event: "HEARTBEAT"})
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a stalled broker")
	}
	select {
	case <-gp.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("background publisher never started")
	}

	close(gp.gate)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(gp.Telemetry) + len(gp.SystemEvents) + a.Dropped(); got != 11 {
		t.Errorf("published+dropped: got %d, want 11", got)
	}
	if a.Dropped() == 0 {
		t.Error("expected drops with a queue of 4")
	}
	if len(gp.SystemEvents) != 1 || gp.SystemEvents[0].Event != "HEARTBEAT" {
		t.Errorf("newest message must survive, got %+v", gp.SystemEvents)
	}
}

func TestAsyncCloseFlushesPending(t *testing.T) {
	fake := NewFakePublisher()
	a := NewAsync(fake, 8, zerolog.Nop())

	a.PublishTelemetry(Telemetry{PositionMs: 1200})
	a.PublishSystem(SystemEvent{Event: "SHUTDOWN", Reason: "SIGTERM", Retained: true})

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(fake.Telemetry) != 1 || fake.Telemetry[0].PositionMs != 1200 {
		t.Errorf("telemetry: got %+v", fake.Telemetry)
	}
	if len(fake.SystemEvents) != 1 || fake.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("system events: got %+v", fake.SystemEvents)
	}
	if !fake.Closed {
		t.Error("expected wrapped publisher to be closed")
	}

	if err := a.PublishTelemetry(Telemetry{}); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close: got %v, want ErrClosed", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestAsyncLogsBrokerErrors(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")
	a := NewAsync(fake, 8, zerolog.Nop())

	if err := a.PublishTelemetry(Telemetry{}); err != nil {
		t.Errorf("broker error leaked to caller: %v", err)
	}
	a.Close()
	if len(fake.Telemetry) != 0 {
		t.Errorf("telemetry: got %d, want 0", len(fake.Telemetry))
	}
}

func TestAsyncIsConnected(t *testing.T) {
	fake := NewFakePublisher()
	fake.Connected = true
	a := NewAsync(fake, 1, zerolog.Nop())
	defer a.Close()

	if !a.IsConnected() {
		t.Error("expected connection state of wrapped publisher")
	}
}
