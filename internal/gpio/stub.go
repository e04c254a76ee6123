//go:build !linux

package gpio

// CdevReader is not available on non-Linux platforms.
type CdevReader struct{}

// NewCdevReader returns ErrNotSupported on non-Linux platforms.
func NewCdevReader(chipName string, pin int) (*CdevReader, error) {
	return nil, ErrNotSupported
}

// Read is not implemented on non-Linux platforms.
func (r *CdevReader) Read() (bool, error) {
	return false, ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (r *CdevReader) Close() error {
	return nil
}

// RpioReader is not available on non-Linux platforms.
type RpioReader struct{}

// NewRpioReader returns ErrNotSupported on non-Linux platforms.
func NewRpioReader(pin int) (*RpioReader, error) {
	return nil, ErrNotSupported
}

// Read is not implemented on non-Linux platforms.
func (r *RpioReader) Read() (bool, error) {
	return false, ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (r *RpioReader) Close() error {
	return nil
}
