package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads the button through the periph.io host drivers.
type PeriphReader struct {
	pin pgpio.PinIO
}

// NewPeriphReader initialises the periph host and configures GPIO<pin> as an
// input with pull-up and no edge detection.
func NewPeriphReader(pin int) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph: no pin named %s", name)
	}
	if err := p.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}

	return &PeriphReader{pin: p}, nil
}

// Read returns true while the line is pulled low.
func (r *PeriphReader) Read() (bool, error) {
	return r.pin.Read() == pgpio.Low, nil
}

// Close stops any pending operation on the pin.
func (r *PeriphReader) Close() error {
	return r.pin.Halt()
}
