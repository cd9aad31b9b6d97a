// Package mqtt carries hoist commands in and telemetry out over MQTT,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/hoist/internal/logic"
)

// DefaultPrefix is the topic prefix for a single hoist.
const DefaultPrefix = "hoist/winch"

// Topic suffixes under the prefix.
const (
	SuffixCommand      = "command"       // in: go_top, go_middle, ...
	SuffixFloor        = "floor"         // in: 1, 2 or 3
	SuffixScheduleUp   = "schedule/up"   // in: seconds of day, -1 disables
	SuffixScheduleDown = "schedule/down" // in: seconds of day, -1 disables
	SuffixTelemetry    = "telemetry"     // out
	SuffixSystem       = "system"        // out: lifecycle, LWT
)

// SourceMQTT tags commands decoded from the broker.
const SourceMQTT = "mqtt"

var (
	// ErrUnknownTopic is returned for messages on topics this package does not handle.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrBadPayload is returned for payloads that cannot be decoded.
	ErrBadPayload = errors.New("bad payload")
)

// Topic joins prefix and suffix.
func Topic(prefix, suffix string) string {
	return prefix + "/" + suffix
}

// CommandTopics returns the inbound topics to subscribe to.
func CommandTopics(prefix string) []string {
	return []string{
		Topic(prefix, SuffixCommand),
		Topic(prefix, SuffixFloor),
		Topic(prefix, SuffixScheduleUp),
		Topic(prefix, SuffixScheduleDown),
	}
}

// DecodeCommand maps an inbound message to a command.
func DecodeCommand(prefix, topic string, payload []byte) (logic.Command, error) {
	s := strings.TrimSpace(string(payload))

	switch topic {
	case Topic(prefix, SuffixCommand):
		ct, err := logic.ParseCommandType(strings.ToLower(s))
		if err != nil {
			return logic.Command{}, err
		}
		cmd := logic.Command{Type: ct, Source: SourceMQTT}
		if cmd.IsSchedule() {
			return logic.Command{}, fmt.Errorf("%w: %s needs a schedule topic", ErrBadPayload, ct)
		}
		return cmd, nil

	case Topic(prefix, SuffixFloor):
		n, err := strconv.Atoi(s)
		if err != nil {
			return logic.Command{}, fmt.Errorf("%w: floor %q", ErrBadPayload, s)
		}
		ct, err := logic.FloorCommand(n)
		if err != nil {
			return logic.Command{}, err
		}
		return logic.Command{Type: ct, Source: SourceMQTT}, nil

	case Topic(prefix, SuffixScheduleUp), Topic(prefix, SuffixScheduleDown):
		n, err := strconv.Atoi(s)
		if err != nil {
			return logic.Command{}, fmt.Errorf("%w: schedule %q", ErrBadPayload, s)
		}
		ct := logic.CmdScheduleUp
		if topic == Topic(prefix, SuffixScheduleDown) {
			ct = logic.CmdScheduleDown
		}
		return logic.Command{Type: ct, Value: n, Source: SourceMQTT}, nil
	}

	return logic.Command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

// Publisher publishes telemetry and lifecycle events to MQTT.
type Publisher interface {
	// PublishTelemetry sends a hoist telemetry sample.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(t Telemetry) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives decoded commands. It is called from the client's
// network goroutine and must not block.
type CommandHandler func(logic.Command)

// Subscriber delivers inbound commands.
type Subscriber interface {
	Subscribe(handler CommandHandler) error
}

// Telemetry is one periodic hoist sample.
type Telemetry struct {
	Timestamp  time.Time
	State      logic.State
	PositionMs int64
	LastRunMs  int64
	Slope      float64
	Fault      logic.Fault
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// TelemetryPayload represents the MQTT telemetry payload structure.
type TelemetryPayload struct {
	Hoist HoistPayload `json:"hoist"`
}

// HoistPayload contains the telemetry details.
type HoistPayload struct {
	Timestamp  string  `json:"timestamp"`
	State      string  `json:"state"`
	PositionMs int64   `json:"position_ms"`
	LastRunMs  int64   `json:"last_run_ms"`
	Slope      float64 `json:"slope"`
	Fault      string  `json:"fault,omitempty"`
}

// FormatTelemetry creates the JSON payload for a telemetry sample.
func FormatTelemetry(t Telemetry) ([]byte, error) {
	payload := TelemetryPayload{
		Hoist: HoistPayload{
			Timestamp:  t.Timestamp.UTC().Format(time.RFC3339),
			State:      string(t.State),
			PositionMs: t.PositionMs,
			LastRunMs:  t.LastRunMs,
			Slope:      t.Slope,
			Fault:      string(t.Fault),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
