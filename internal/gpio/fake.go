package gpio

// MotorCall records one motor command.
type MotorCall struct {
	Dir   string // "up", "down" or "stop"
	Speed uint8
}

// FakeMotor is a test double that records motor commands.
type FakeMotor struct {
	Calls []MotorCall

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeMotor creates an idle FakeMotor.
func NewFakeMotor() *FakeMotor {
	return &FakeMotor{}
}

func (f *FakeMotor) DriveUp(speed uint8) {
	f.Calls = append(f.Calls, MotorCall{Dir: "up", Speed: speed})
}

func (f *FakeMotor) DriveDown(speed uint8) {
	f.Calls = append(f.Calls, MotorCall{Dir: "down", Speed: speed})
}

func (f *FakeMotor) Stop() {
	f.Calls = append(f.Calls, MotorCall{Dir: "stop"})
}

// Last returns the most recent command, or a stop if none was issued.
func (f *FakeMotor) Last() MotorCall {
	if len(f.Calls) == 0 {
		return MotorCall{Dir: "stop"}
	}
	return f.Calls[len(f.Calls)-1]
}

// Close stops the motor and marks it closed.
func (f *FakeMotor) Close() error {
	f.Stop()
	f.Closed = true
	return nil
}

// FakeSensor is a test double that returns scripted limit readings.
type FakeSensor struct {
	// Samples contains scripted readings. Each call to IsTopTriggered
	// consumes the next sample; the last one repeats once exhausted.
	// With no samples, Triggered is returned.
	Samples []bool

	// Triggered is the reading used when Samples is empty.
	Triggered bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeSensor creates a FakeSensor with the given samples.
func NewFakeSensor(samples ...bool) *FakeSensor {
	return &FakeSensor{Samples: samples}
}

func (f *FakeSensor) IsTopTriggered() bool {
	if len(f.Samples) == 0 {
		return f.Triggered
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the sensor to the beginning of samples.
func (f *FakeSensor) Reset() {
	f.index = 0
	f.Closed = false
}
