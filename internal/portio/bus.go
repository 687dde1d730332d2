// Package portio provides byte access to the CPU's legacy I/O port space.
//
// Every hardware access made by the sensor engine funnels through Bus so
// that tests can substitute a simulated chip for real ports.
package portio

import (
	"errors"
	"fmt"
)

// Bus is the pair of privileged I/O primitives supplied by a platform
// driver. Calls are synchronous and side-effecting: callers must neither
// reorder nor elide them.
type Bus interface {
	// Inb reads one byte from port.
	Inb(port uint16) byte

	// Outb writes value to port.
	Outb(port uint16, value byte)
}

// Driver is a Bus backed by an operating-system resource.
type Driver interface {
	Bus

	// Err returns the first I/O failure seen by the driver, if any.
	// Failed reads return 0xFF, the value of a floating ISA bus.
	Err() error

	// Close releases the underlying driver.
	Close() error
}

// ErrDriverUnavailable is returned when the port I/O primitives cannot be
// obtained, typically because the process lacks privilege or the driver
// is not installed.
var ErrDriverUnavailable = errors.New("port I/O driver unavailable")

// Driver kinds accepted by Open.
const (
	KindAuto    = "auto"
	KindDevPort = "devport"
	KindInpOut  = "inpout"
)

// Open loads the port I/O driver of the given kind. An empty path selects
// the platform default (/dev/port, inpoutx64.dll).
func Open(kind, path string) (Driver, error) {
	switch kind {
	case "", KindAuto:
		return openDefault(path)
	case KindDevPort:
		return openDevPort(path)
	case KindInpOut:
		return openInpOut(path)
	default:
		return nil, fmt.Errorf("unknown bus driver %q", kind)
	}
}
