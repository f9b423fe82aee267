//go:build !linux

package stderr

import "os"

// Capture is a no-op outside Linux.
type Capture struct{}

// Start does nothing outside Linux.
func Start() (*Capture, error) {
	return &Capture{}, nil
}

// Original returns os.Stderr.
func (c *Capture) Original() *os.File {
	return os.Stderr
}

// Close does nothing.
func (c *Capture) Close() error {
	return nil
}
