package logic

import (
	"time"

	"github.com/rs/zerolog"
)

type motorCall struct {
	dir   string // "up", "down", "stop"
	speed uint8
}

type recordingMotor struct {
	calls []motorCall
}

func (m *recordingMotor) DriveUp(speed uint8)   { m.calls = append(m.calls, motorCall{"up", speed}) }
func (m *recordingMotor) DriveDown(speed uint8) { m.calls = append(m.calls, motorCall{"down", speed}) }
func (m *recordingMotor) Stop()                 { m.calls = append(m.calls, motorCall{"stop", 0}) }

func (m *recordingMotor) last() motorCall {
	if len(m.calls) == 0 {
		return motorCall{}
	}
	return m.calls[len(m.calls)-1]
}

type switchSensor struct {
	triggered bool
}

func (s *switchSensor) IsTopTriggered() bool { return s.triggered }

// stubMaintenance mirrors the engine's strict greater-than anomaly rule.
type stubMaintenance struct {
	baseline time.Duration
	ratio    float64
	runs     []time.Duration
}

func (m *stubMaintenance) CheckAcuteAnomaly(elapsed time.Duration) bool {
	return elapsed > time.Duration(float64(m.baseline)*m.ratio)
}

func (m *stubMaintenance) RecordRun(d time.Duration) { m.runs = append(m.runs, d) }

type harness struct {
	c      *Controller
	motor  *recordingMotor
	sensor *switchSensor
	maint  *stubMaintenance
	now    time.Time
}

func newHarness(cfg Config) *harness {
	h := &harness{
		motor:  &recordingMotor{},
		sensor: &switchSensor{},
		maint:  &stubMaintenance{baseline: cfg.TimeToBottom, ratio: 1.3},
		now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	h.c = NewController(cfg, h.motor, h.sensor, h.maint, zerolog.Nop(), h.now)
	return h
}

// step advances the clock by d and ticks once.
func (h *harness) step(d time.Duration) {
	h.now = h.now.Add(d)
	h.c.Tick(h.now)
}

// run ticks every step for total.
func (h *harness) run(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		h.step(step)
	}
}

// calibrate homes the controller so it is Idle at position 0.
func (h *harness) calibrate() {
	if err := h.c.GoTop(h.now); err != nil {
		panic(err)
	}
	h.step(50 * time.Millisecond)
	h.sensor.triggered = true
	h.step(50 * time.Millisecond)
	h.sensor.triggered = false
}
