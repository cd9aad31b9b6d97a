// Package status provides a thread-safe status tracker for the hoist daemon.
// It is read by HTTP handlers, the websocket feed and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/hoist/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/config from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	TelemetryMs int64
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPPort    string
	Sensor      string // "switch", "ultrasonic" or "sim"
}

// Maintenance summarises the run-time history.
type Maintenance struct {
	LastRunMs int64
	Slope     float64
	History   []int64 // oldest first, milliseconds
}

// Schedule holds the configured trigger times in seconds of day; -1 is off.
type Schedule struct {
	Up   int
	Down int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	Hoist         logic.Snapshot
	Maintenance   Maintenance
	Schedule      Schedule
	LastError     string // most recent rejected command
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Hoist:     logic.Snapshot{State: logic.StatePositionUnknown, PositionMs: -1},
			Schedule:  Schedule{Up: -1, Down: -1},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller and maintenance state.
// Called from runLoop on every tick.
func (t *Tracker) Update(hoist logic.Snapshot, m Maintenance) {
	m.History = append([]int64(nil), m.History...)

	t.mu.Lock()
	t.snap.Hoist = hoist
	t.snap.Maintenance = m
	t.mu.Unlock()
}

// SetSchedule sets the displayed schedule.
func (t *Tracker) SetSchedule(up, down int) {
	t.mu.Lock()
	t.snap.Schedule = Schedule{Up: up, Down: down}
	t.mu.Unlock()
}

// SetLastError records the most recent rejected command; empty clears it.
func (t *Tracker) SetLastError(msg string) {
	t.mu.Lock()
	t.snap.LastError = msg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
