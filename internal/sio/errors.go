package sio

import "errors"

// Engine faults. None of these escape a poll cycle: they are counted,
// logged and reflected in the snapshot's Status and field presence.
var (
	ErrChipNotFound          = errors.New("no recognized Super I/O chip")
	ErrNoRegisterMap         = errors.New("chip recognized but no register map is known")
	ErrImplausibleReading    = errors.New("implausible sensor reading")
	ErrBusTimeout            = errors.New("EC bus busy: spin-wait budget exhausted")
	ErrFanControlUnavailable = errors.New("fan control unavailable")
)
