//go:build windows

package portio

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const defaultInpOutDLL = "inpoutx64.dll"

// InpOut binds the Out32/Inp32 entry points of the inpoutx64 kernel
// driver wrapper.
type InpOut struct {
	dll   *windows.LazyDLL
	out32 *windows.LazyProc
	inp32 *windows.LazyProc
}

func openDefault(path string) (Driver, error) {
	return openInpOut(path)
}

func openDevPort(string) (Driver, error) {
	return nil, fmt.Errorf("%w: /dev/port is only available on Linux", ErrDriverUnavailable)
}

func openInpOut(path string) (Driver, error) {
	if path == "" {
		path = defaultInpOutDLL
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDriverUnavailable, path, err)
	}

	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrDriverUnavailable, path, err)
	}

	d := &InpOut{
		dll:   dll,
		out32: dll.NewProc("Out32"),
		inp32: dll.NewProc("Inp32"),
	}
	if d.out32.Find() != nil || d.inp32.Find() != nil {
		return nil, fmt.Errorf("%w: Inp32/Out32 not exported by %s", ErrDriverUnavailable, path)
	}

	// IsInpOutDriverOpen reports whether the kernel half was installed;
	// older builds of the wrapper do not export it.
	if open := dll.NewProc("IsInpOutDriverOpen"); open.Find() == nil {
		if r, _, _ := open.Call(); r == 0 {
			return nil, fmt.Errorf("%w: inpout kernel driver not running (administrator rights required)", ErrDriverUnavailable)
		}
	}
	return d, nil
}

// Inb reads one byte from port.
func (d *InpOut) Inb(port uint16) byte {
	r, _, _ := d.inp32.Call(uintptr(port))
	return byte(r)
}

// Outb writes value to port.
func (d *InpOut) Outb(port uint16, value byte) {
	d.out32.Call(uintptr(port), uintptr(value))
}

// Err always returns nil; the wrapper does not report failures.
func (d *InpOut) Err() error { return nil }

// Close is a no-op; the DLL stays mapped for the process lifetime.
func (d *InpOut) Close() error { return nil }
