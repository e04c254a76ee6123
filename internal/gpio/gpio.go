// Package gpio provides the digital input line behind the button.
// Each backend configures the line as an input with pull-up bias when it is
// opened, so an idle line reads high and a press pulls it low.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Reader reads the button line.
type Reader interface {
	// Read returns the logical pressed state.
	// The raw GPIO value is inverted: raw low = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Driver names a GPIO backend.
type Driver string

const (
	DriverCdev   Driver = "gpiocdev" // Linux GPIO character device
	DriverPeriph Driver = "periph"   // periph.io host drivers
	DriverRpio   Driver = "rpio"     // /dev/gpiomem register access
)

// Defaults (BCM numbering).
const (
	DefaultDriver = DriverCdev
	DefaultChip   = "gpiochip0"
	DefaultPin    = 17
)

var (
	// ErrUnknownDriver is returned by Open for an unrecognised driver name.
	ErrUnknownDriver = errors.New("gpio: unknown driver")

	// ErrNotSupported is returned by backends that cannot run on this platform.
	ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")
)

// Drivers lists the accepted driver names.
func Drivers() []Driver {
	return []Driver{DriverCdev, DriverPeriph, DriverRpio}
}

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	for _, d := range Drivers() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, s)
}

// Open configures pin as a pull-up input using the given backend.
// chip is only used by the gpiocdev backend.
func Open(driver Driver, chip string, pin int) (Reader, error) {
	var (
		r   Reader
		err error
	)
	switch driver {
	case DriverCdev:
		var cr *CdevReader
		if cr, err = NewCdevReader(chip, pin); err == nil {
			r = cr
		}
	case DriverPeriph:
		var pr *PeriphReader
		if pr, err = NewPeriphReader(pin); err == nil {
			r = pr
		}
	case DriverRpio:
		var rr *RpioReader
		if rr, err = NewRpioReader(pin); err == nil {
			r = rr
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
