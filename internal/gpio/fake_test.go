package gpio

import "testing"

func TestFakeMotorRecordsCalls(t *testing.T) {
	m := NewFakeMotor()

	if got := m.Last(); got.Dir != "stop" {
		t.Errorf("idle motor: got %+v, want stop", got)
	}

	m.DriveUp(200)
	m.DriveDown(150)
	m.Stop()

	want := []MotorCall{{"up", 200}, {"down", 150}, {"stop", 0}}
	if len(m.Calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(m.Calls))
	}
	for i, c := range want {
		if m.Calls[i] != c {
			t.Errorf("call %d: got %+v, want %+v", i, m.Calls[i], c)
		}
	}
}

func TestFakeMotorCloseStops(t *testing.T) {
	m := NewFakeMotor()
	m.DriveUp(200)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !m.Closed {
		t.Error("expected Closed to be true")
	}
	if m.Last().Dir != "stop" {
		t.Errorf("Close must stop the motor, last call %+v", m.Last())
	}
}

func TestFakeSensorSamples(t *testing.T) {
	s := NewFakeSensor(false, false, true)

	want := []bool{false, false, true, true, true}
	for i, w := range want {
		if got := s.IsTopTriggered(); got != w {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}

	s.Reset()
	if s.IsTopTriggered() {
		t.Error("after Reset expected first sample (false)")
	}
}

func TestFakeSensorTriggeredField(t *testing.T) {
	s := NewFakeSensor()

	if s.IsTopTriggered() {
		t.Error("expected false by default")
	}
	s.Triggered = true
	if !s.IsTopTriggered() {
		t.Error("expected Triggered to be returned")
	}
}

func TestFakesImplementInterfaces(t *testing.T) {
	var _ Motor = NewFakeMotor()
	var _ LimitSensor = NewFakeSensor()
	var _ Motor = &SimWinch{}
	var _ LimitSensor = &SimWinch{}
}
