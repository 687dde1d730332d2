//go:build linux

package portio

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

const defaultDevPort = "/dev/port"

// DevPort accesses I/O ports through the kernel's /dev/port character
// device, where the file offset is the port number.
type DevPort struct {
	fd int

	mu  sync.Mutex
	err error
}

func openDefault(path string) (Driver, error) {
	return openDevPort(path)
}

func openDevPort(path string) (Driver, error) {
	if path == "" {
		path = defaultDevPort
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDriverUnavailable, path, err)
	}
	return &DevPort{fd: fd}, nil
}

func openInpOut(string) (Driver, error) {
	return nil, fmt.Errorf("%w: inpout is only available on Windows", ErrDriverUnavailable)
}

// Inb reads one byte from port.
func (d *DevPort) Inb(port uint16) byte {
	var b [1]byte
	if _, err := unix.Pread(d.fd, b[:], int64(port)); err != nil {
		d.fail(fmt.Errorf("inb 0x%04x: %w", port, err))
		return 0xFF
	}
	return b[0]
}

// Outb writes value to port.
func (d *DevPort) Outb(port uint16, value byte) {
	b := [1]byte{value}
	if _, err := unix.Pwrite(d.fd, b[:], int64(port)); err != nil {
		d.fail(fmt.Errorf("outb 0x%04x: %w", port, err))
	}
}

func (d *DevPort) fail(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
}

// Err returns the first I/O failure.
func (d *DevPort) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close closes /dev/port.
func (d *DevPort) Close() error {
	return unix.Close(d.fd)
}
