//go:build !linux

package button

import (
	"context"
	"os"
)

func watch(context.Context, *os.File, func([]byte)) error {
	return ErrNotAvailable
}
