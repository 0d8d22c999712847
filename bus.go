package tempmon

import (
	"context"
	"fmt"
	"strings"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ControllerID names a bus controller as reported by a provider
// (a periph bus name, a gobot bus number, a HID device path...).
type ControllerID string

// BusSpeed is the I2C clock requested when a device is opened.
type BusSpeed int

const (
	BusSpeedFast BusSpeed = iota
	BusSpeedStandard
)

// Hertz returns the nominal clock for the speed.
func (s BusSpeed) Hertz() int64 {
	if s == BusSpeedStandard {
		return 100_000
	}
	return 400_000
}

func (s BusSpeed) String() string {
	if s == BusSpeedStandard {
		return "standard"
	}
	return "fast"
}

// ParseBusSpeed accepts "fast" and "standard" (case insensitive). Empty means fast.
func ParseBusSpeed(s string) (BusSpeed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fast", "fastmode":
		return BusSpeedFast, nil
	case "standard", "standardmode":
		return BusSpeedStandard, nil
	}
	return BusSpeedFast, fmt.Errorf("unknown bus speed %q", s)
}

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

// BusWriteReader performs a write followed by a read as one bus transaction
// (repeated start, no STOP in between).
type BusWriteReader interface {
	WriteRead(ctx context.Context, w, r []byte) error
}

// I2CHandle is an opened device at a fixed slave address.
type I2CHandle interface {
	BusWriter
	BusWriteReader
	Close() error
}

// I2CProvider enumerates bus controllers and opens devices on them.
//
// Open returns ErrAddressInUse when the address is claimed elsewhere. Callers
// also treat a nil handle with a nil error as a claimed address.
type I2CProvider interface {
	Controllers(ctx context.Context) ([]ControllerID, error)
	Open(ctx context.Context, id ControllerID, address byte, speed BusSpeed) (I2CHandle, error)
}
