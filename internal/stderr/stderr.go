//go:build linux

// Package stderr captures output that C libraries (ALSA through the audio
// backend) write directly to file descriptor 2, bypassing Go's os.Stderr,
// and forwards it to the logger line by line.
package stderr

import (
	"bufio"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Capture is an active redirection of fd 2.
type Capture struct {
	orig *os.File
	r, w *os.File
	done chan struct{}
}

// Start redirects fd 2 into a pipe. Call it before the audio device is
// opened. On error stderr is left untouched.
func Start() (*Capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	fd, err := unix.Dup(unix.Stderr)
	if err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	unix.CloseOnExec(fd)

	if err := unix.Dup3(int(w.Fd()), unix.Stderr, 0); err != nil {
		unix.Close(fd)
		r.Close()
		w.Close()
		return nil, err
	}

	c := &Capture{
		orig: os.NewFile(uintptr(fd), "/dev/stderr"),
		r:    r,
		w:    w,
		done: make(chan struct{}),
	}
	go c.forward()
	return c, nil
}

func (c *Capture) forward() {
	defer close(c.done)
	logger := log.With().Str("component", "stderr").Logger()
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			logger.Warn().Msg(line)
		}
	}
}

// Original returns the stderr that was in place before Start. The logger
// writes there so its own output is not captured. It stays open after
// Close.
func (c *Capture) Original() *os.File {
	return c.orig
}

// Close restores fd 2 and waits until captured lines are logged.
func (c *Capture) Close() error {
	err := unix.Dup3(int(c.orig.Fd()), unix.Stderr, 0)
	c.w.Close()
	<-c.done
	c.r.Close()
	return err
}
