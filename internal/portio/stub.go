//go:build !linux && !windows

package portio

import (
	"fmt"
	"runtime"
)

func openDefault(path string) (Driver, error) {
	return nil, fmt.Errorf("%w: no port I/O driver for %s", ErrDriverUnavailable, runtime.GOOS)
}

func openDevPort(path string) (Driver, error) { return openDefault(path) }

func openInpOut(path string) (Driver, error) { return openDefault(path) }
