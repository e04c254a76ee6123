//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioReader reads the button through memory-mapped BCM283x registers.
type RpioReader struct {
	pin rpio.Pin
}

// NewRpioReader maps /dev/gpiomem and configures pin as an input with pull-up.
func NewRpioReader(pin int) (*RpioReader, error) {
	if pin < 0 || pin > 53 {
		return nil, fmt.Errorf("rpio: pin %d out of range", pin)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()

	return &RpioReader{pin: p}, nil
}

// Read returns true while the line is pulled low.
func (r *RpioReader) Read() (bool, error) {
	return r.pin.Read() == rpio.Low, nil
}

// Close unmaps the register window.
func (r *RpioReader) Close() error {
	return rpio.Close()
}
