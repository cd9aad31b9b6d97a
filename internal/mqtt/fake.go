package mqtt

// FakePublisher records published messages for test assertions and lets
// tests inject inbound commands.
type FakePublisher struct {
	// Prefix is the topic prefix used by Deliver. Empty means DefaultPrefix.
	Prefix string

	// Telemetry contains all telemetry samples that were published.
	Telemetry []Telemetry

	// Payloads contains the JSON telemetry payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishTelemetry.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler CommandHandler
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishTelemetry records the telemetry sample.
func (f *FakePublisher) PublishTelemetry(t Telemetry) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Telemetry = append(f.Telemetry, t)

	payload, err := FormatTelemetry(t)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Subscribe stores the handler for Deliver.
func (f *FakePublisher) Subscribe(handler CommandHandler) error {
	f.handler = handler
	return nil
}

// Deliver decodes an inbound message as the broker would and passes it
// to the subscribed handler.
func (f *FakePublisher) Deliver(suffix, payload string) error {
	prefix := f.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	cmd, err := DecodeCommand(prefix, Topic(prefix, suffix), []byte(payload))
	if err != nil {
		return err
	}
	if f.handler != nil {
		f.handler(cmd)
	}
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Telemetry = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
