//go:build linux

package button

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const pollTimeoutMS = 250

// watch waits for interrupts on the value file and calls onEdge with the
// value read after each one.
func watch(ctx context.Context, f *os.File, onEdge func([]byte)) error {
	buf := make([]byte, 8)

	// A read clears the interrupt that is pending after open.
	if _, err := f.Read(buf); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read gpio value: %w", err)
	}

	fds := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	for ctx.Err() == nil {
		fds[0].Revents = 0
		n, err := unix.Poll(fds, pollTimeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll gpio value: %w", err)
		}
		if n == 0 || fds[0].Revents&unix.POLLPRI == 0 {
			continue
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind gpio value: %w", err)
		}
		m, err := f.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read gpio value: %w", err)
		}
		onEdge(buf[:m])
	}
	return nil
}
