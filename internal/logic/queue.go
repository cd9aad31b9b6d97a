package logic

import "errors"

// ErrQueueFull is returned when a command cannot be queued.
var ErrQueueFull = errors.New("command queue full")

// Queue carries commands from the transports to the goroutine that owns
// the Controller. Emergency stops travel on their own channel and are
// never refused.
type Queue struct {
	Commands chan Command
	Stops    chan Command
}

// NewQueue creates a queue holding up to size ordinary commands.
func NewQueue(size int) *Queue {
	return &Queue{
		Commands: make(chan Command, size),
		Stops:    make(chan Command, 1),
	}
}

// Submit queues cmd without blocking. An emergency stop always succeeds;
// when one is already pending the new one is folded into it.
func (q *Queue) Submit(cmd Command) error {
	if cmd.Type == CmdEmergencyStop {
		select {
		case q.Stops <- cmd:
		default:
		}
		return nil
	}
	select {
	case q.Commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}
