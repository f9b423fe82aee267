// Package button turns presses of a push button wired to a Raspberry Pi GPIO
// pin into "next" commands.
package button

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/control"
)

// Config locates the pin in sysfs.
type Config struct {
	Sysfs    string // e.g. /sys/class/gpio
	Platform string // directory that only exists on Raspberry Pi hardware
	Pin      string
}

// ErrNotAvailable is returned when the platform has no usable GPIO.
var ErrNotAvailable = errors.New("gpio not available")

func (c Config) valuePath() string {
	return filepath.Join(c.Sysfs, "gpio"+c.Pin, "value")
}

// Watch emits a Next command on out for every falling edge of the pin until
// ctx is done. It returns nil right away when not on Raspberry Pi hardware.
func Watch(ctx context.Context, cfg Config, out chan<- control.Command) error {
	logger := log.With().Str("component", "button").Logger()

	if fi, err := os.Stat(cfg.Platform); err != nil || !fi.IsDir() {
		logger.Info().Msg("Not on Raspberry Pi hardware, button disabled")
		return nil
	}
	if err := configure(cfg); err != nil {
		// the pin may have been set up by someone else
		logger.Debug().Err(err).Msg("Configuring GPIO pin failed")
	}

	f, err := os.Open(cfg.valuePath())
	if err != nil {
		return fmt.Errorf("open gpio value: %w", err)
	}
	defer f.Close()

	logger.Info().Str("pin", cfg.Pin).Msg("Watching button")
	return watch(ctx, f, func(value []byte) {
		cmd, ok := pressed(value)
		if !ok {
			return
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
		}
	})
}

// configure exports the pin and enables falling-edge interrupts on it.
func configure(cfg Config) error {
	if err := writeFile(filepath.Join(cfg.Sysfs, "export"), cfg.Pin+"\n"); err != nil {
		return err
	}
	return writeFile(filepath.Join(cfg.Sysfs, "gpio"+cfg.Pin, "edge"), "falling\n")
}

func writeFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// pressed maps a pin value to a command. The pin is pulled up, so a press
// reads as "0".
func pressed(value []byte) (control.Command, bool) {
	cmd, err := control.Parse(string(bytes.TrimSpace(value)))
	if err != nil || cmd.Kind != control.Next {
		return control.Command{}, false
	}
	cmd.Source = control.SourceButton
	return cmd, true
}
