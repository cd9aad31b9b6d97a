package logic

import (
	"errors"
	"testing"
)

func TestQueueSubmit(t *testing.T) {
	q := NewQueue(1)

	if err := q.Submit(Command{Type: CmdGoMiddle}); err != nil {
		t.Fatalf("first move: %v", err)
	}
	if err := q.Submit(Command{Type: CmdGoBottom}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second move: got %v, want ErrQueueFull", err)
	}
	if got := <-q.Commands; got.Type != CmdGoMiddle {
		t.Errorf("queued: got %s, want %s", got.Type, CmdGoMiddle)
	}
}

func TestQueueEmergencyStopNeverRefused(t *testing.T) {
	q := NewQueue(1)
	q.Submit(Command{Type: CmdGoMiddle})

	for i := 0; i < 3; i++ {
		if err := q.Submit(Command{Type: CmdEmergencyStop, Source: "test"}); err != nil {
			t.Fatalf("emergency stop %d with full queue: %v", i, err)
		}
	}
	if len(q.Stops) != 1 {
		t.Errorf("pending stops: got %d, want 1", len(q.Stops))
	}
	if len(q.Commands) != 1 {
		t.Errorf("emergency stop must not use the command slots, got %d queued", len(q.Commands))
	}
}
