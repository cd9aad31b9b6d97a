// Package schedule fires hoist commands at configured times of day.
package schedule

import (
	"fmt"
	"time"
)

// Disabled marks a trigger that never fires.
const Disabled = -1

// secondsPerDay bounds trigger values.
const secondsPerDay = 24 * 60 * 60

// minSyncedYear guards against firing before the clock has been set.
const minSyncedYear = 2020

// Trigger is the result of a schedule check.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerUp
	TriggerDown
)

func (t Trigger) String() string {
	switch t {
	case TriggerUp:
		return "UP"
	case TriggerDown:
		return "DOWN"
	}
	return "NONE"
}

// Scheduler compares wall-clock time against an up and a down trigger,
// each expressed as seconds since local midnight.
// Not safe for concurrent use.
type Scheduler struct {
	up          int
	down        int
	loc         *time.Location
	lastChecked int
}

// New creates a scheduler with both triggers disabled. A nil location
// means time.Local.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		up:          Disabled,
		down:        Disabled,
		loc:         loc,
		lastChecked: -1,
	}
}

// SetUp sets the up trigger. Use Disabled to turn it off.
func (s *Scheduler) SetUp(seconds int) error {
	if err := validate(seconds); err != nil {
		return err
	}
	s.up = seconds
	return nil
}

// SetDown sets the down trigger. Use Disabled to turn it off.
func (s *Scheduler) SetDown(seconds int) error {
	if err := validate(seconds); err != nil {
		return err
	}
	s.down = seconds
	return nil
}

// Up returns the up trigger in seconds of day, or Disabled.
func (s *Scheduler) Up() int {
	return s.up
}

// Down returns the down trigger in seconds of day, or Disabled.
func (s *Scheduler) Down() int {
	return s.down
}

// Check returns the trigger matching now's second of day. Each wall-clock
// second is examined at most once. Up wins when both triggers match.
func (s *Scheduler) Check(now time.Time) Trigger {
	local := now.In(s.loc)
	if local.Year() < minSyncedYear {
		return TriggerNone
	}

	current := SecondsOfDay(local)
	if current == s.lastChecked {
		return TriggerNone
	}
	s.lastChecked = current

	if s.up != Disabled && current == s.up {
		return TriggerUp
	}
	if s.down != Disabled && current == s.down {
		return TriggerDown
	}
	return TriggerNone
}

// SecondsOfDay returns the seconds since midnight of t in t's location.
func SecondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// FormatSeconds renders a trigger as HH:MM:SS, or "off".
func FormatSeconds(seconds int) string {
	if seconds == Disabled {
		return "off"
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

func validate(seconds int) error {
	if seconds == Disabled {
		return nil
	}
	if seconds < 0 || seconds >= secondsPerDay {
		return fmt.Errorf("schedule time %d out of range 0..%d", seconds, secondsPerDay-1)
	}
	return nil
}
