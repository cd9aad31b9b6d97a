package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/schedule"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Hoist         HoistJSON       `json:"hoist"`
	Maintenance   MaintenanceJSON `json:"maintenance"`
	Schedule      ScheduleJSON    `json:"schedule"`
	LastError     string          `json:"last_error,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// HoistJSON is the JSON representation of the controller state.
type HoistJSON struct {
	State            string `json:"state"`
	PositionMs       int64  `json:"position_ms"`
	TargetMs         int64  `json:"target_ms"`
	FullRunMeasuring bool   `json:"full_run_measuring"`
	Fault            string `json:"fault,omitempty"`
}

// MaintenanceJSON is the JSON representation of the run history.
type MaintenanceJSON struct {
	LastRunMs int64   `json:"last_run_ms"`
	Slope     float64 `json:"slope"`
	History   []int64 `json:"history_ms"`
}

// ScheduleJSON renders trigger times as HH:MM:SS or "off".
type ScheduleJSON struct {
	Up   string `json:"up"`
	Down string `json:"down"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	TelemetryMs int64  `json:"telemetry_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPPort    string `json:"http_port"`
	Sensor      string `json:"sensor"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Hoist.State)
	if state == "" {
		state = string(logic.StatePositionUnknown)
	}
	history := snap.Maintenance.History
	if history == nil {
		history = []int64{}
	}

	return StatusInner{
		Hoist: HoistJSON{
			State:            state,
			PositionMs:       snap.Hoist.PositionMs,
			TargetMs:         snap.Hoist.TargetMs,
			FullRunMeasuring: snap.Hoist.FullRunMeasuring,
			Fault:            string(snap.Hoist.Fault),
		},
		Maintenance: MaintenanceJSON{
			LastRunMs: snap.Maintenance.LastRunMs,
			Slope:     snap.Maintenance.Slope,
			History:   history,
		},
		Schedule: ScheduleJSON{
			Up:   schedule.FormatSeconds(snap.Schedule.Up),
			Down: schedule.FormatSeconds(snap.Schedule.Down),
		},
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			TelemetryMs: snap.Config.TelemetryMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPPort:    snap.Config.HTTPPort,
			Sensor:      snap.Config.Sensor,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
