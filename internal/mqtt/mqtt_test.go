package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/hoist/internal/logic"
)

func TestTopics(t *testing.T) {
	if got := Topic(DefaultPrefix, SuffixTelemetry); got != "hoist/winch/telemetry" {
		t.Errorf("telemetry topic: got %s", got)
	}

	want := []string{
		"lab/hoist/command",
		"lab/hoist/floor",
		"lab/hoist/schedule/up",
		"lab/hoist/schedule/down",
	}
	got := CommandTopics("lab/hoist")
	if len(got) != len(want) {
		t.Fatalf("expected %d topics, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		suffix  string
		payload string
		want    logic.Command
	}{
		{SuffixCommand, "go_top", logic.Command{Type: logic.CmdGoTop, Source: SourceMQTT}},
		{SuffixCommand, "GO_MIDDLE\n", logic.Command{Type: logic.CmdGoMiddle, Source: SourceMQTT}},
		{SuffixCommand, "go_bottom", logic.Command{Type: logic.CmdGoBottom, Source: SourceMQTT}},
		{SuffixCommand, "emergency_stop", logic.Command{Type: logic.CmdEmergencyStop, Source: SourceMQTT}},
		{SuffixCommand, "acknowledge_fault", logic.Command{Type: logic.CmdAcknowledgeFault, Source: SourceMQTT}},
		{SuffixFloor, "1", logic.Command{Type: logic.CmdGoBottom, Source: SourceMQTT}},
		{SuffixFloor, "2", logic.Command{Type: logic.CmdGoMiddle, Source: SourceMQTT}},
		{SuffixFloor, " 3 ", logic.Command{Type: logic.CmdGoTop, Source: SourceMQTT}},
		{SuffixScheduleUp, "27000", logic.Command{Type: logic.CmdScheduleUp, Value: 27000, Source: SourceMQTT}},
		{SuffixScheduleDown, "-1", logic.Command{Type: logic.CmdScheduleDown, Value: -1, Source: SourceMQTT}},
	}

	for _, tt := range tests {
		t.Run(tt.suffix+"="+tt.payload, func(t *testing.T) {
			got, err := DecodeCommand(DefaultPrefix, Topic(DefaultPrefix, tt.suffix), []byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    error
	}{
		{"unknown command", "hoist/winch/command", "fly", logic.ErrUnknownCommand},
		{"schedule on command topic", "hoist/winch/command", "schedule_up", ErrBadPayload},
		{"non-numeric floor", "hoist/winch/floor", "top", ErrBadPayload},
		{"floor out of range", "hoist/winch/floor", "4", logic.ErrUnknownCommand},
		{"non-numeric schedule", "hoist/winch/schedule/up", "7am", ErrBadPayload},
		{"foreign topic", "other/winch/command", "go_top", ErrUnknownTopic},
		{"outbound topic", "hoist/winch/telemetry", "{}", ErrUnknownTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(DefaultPrefix, tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFormatTelemetryExactJSON(t *testing.T) {
	tel := Telemetry{
		Timestamp:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		State:      logic.StateIdle,
		PositionMs: 4000,
		LastRunMs:  8120,
		Slope:      12.5,
	}

	payload, err := FormatTelemetry(tel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"hoist":{"timestamp":"2026-02-02T22:18:12Z","state":"IDLE","position_ms":4000,"last_run_ms":8120,"slope":12.5}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatTelemetryFaultAndTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	tel := Telemetry{
		Timestamp:  time.Date(2026, 2, 3, 0, 30, 0, 0, loc),
		State:      logic.StateError,
		PositionMs: -1,
		Fault:      logic.FaultOverrun,
	}

	payload, err := FormatTelemetry(tel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed TelemetryPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Hoist.Timestamp != "2026-02-02T22:30:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Hoist.Timestamp)
	}
	if parsed.Hoist.Fault != string(logic.FaultOverrun) {
		t.Errorf("fault: got %q", parsed.Hoist.Fault)
	}
	if parsed.Hoist.PositionMs != -1 {
		t.Errorf("unknown position should be -1, got %d", parsed.Hoist.PositionMs)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	tests := []struct {
		event SystemEvent
		want  string
	}{
		{
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), Event: "OFFLINE", Reason: "MQTT_DISCONNECT"},
			`{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`,
		},
		{
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: "RECONNECTED"},
			`{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`,
		},
	}

	for _, tt := range tests {
		payload, err := FormatSystemPayload(tt.event)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != tt.want {
			t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
		}
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP"}}`)

	payload, err := FormatSystemPayload(SystemEvent{Event: "ignored", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	f.PublishTelemetry(Telemetry{State: logic.StateMovingUp})
	f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Event: "HEARTBEAT"})

	if len(f.Telemetry) != 1 || len(f.Payloads) != 1 {
		t.Fatalf("expected 1 telemetry sample, got %d", len(f.Telemetry))
	}
	if f.Telemetry[0].State != logic.StateMovingUp {
		t.Errorf("state: got %s", f.Telemetry[0].State)
	}
	if len(f.SystemEvents) != 2 || len(f.SystemPayloads) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(f.SystemEvents))
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flags not preserved")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.PublishTelemetry(Telemetry{}); err == nil {
		t.Error("expected telemetry error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected system error")
	}
	if len(f.Telemetry) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherResetAndClose(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.PublishTelemetry(Telemetry{})
	f.Close()

	if !f.Closed {
		t.Error("expected Closed")
	}
	f.Reset()
	if f.Closed || f.Connected || len(f.Telemetry) != 0 {
		t.Errorf("Reset did not clear state: %+v", f)
	}
}

func TestFakePublisherDeliver(t *testing.T) {
	f := NewFakePublisher()
	var got []logic.Command
	f.Subscribe(func(c logic.Command) { got = append(got, c) })

	if err := f.Deliver(SuffixFloor, "3"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := f.Deliver(SuffixCommand, "bogus"); err == nil {
		t.Error("expected decode error")
	}

	if len(got) != 1 || got[0].Type != logic.CmdGoTop {
		t.Errorf("handler got %+v", got)
	}
}

func TestInterfaces(t *testing.T) {
	var _ Publisher = &FakePublisher{}
	var _ Subscriber = &FakePublisher{}
	var _ ConnectionStatus = &FakePublisher{}
	var _ Publisher = &RealClient{}
	var _ Subscriber = &RealClient{}
	var _ ConnectionStatus = &RealClient{}
}
