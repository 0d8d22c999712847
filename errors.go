package tempmon

import (
	"errors"
	"fmt"
)

type BusErrorKind int

const (
	BusWriteFailed BusErrorKind = iota + 1
	BusReadFailed
	BusDeviceClosed
)

func (k BusErrorKind) String() string {
	switch k {
	case BusWriteFailed:
		return "write failed"
	case BusReadFailed:
		return "read failed"
	case BusDeviceClosed:
		return "device closed"
	}
	return "unknown bus error"
}

// BusError is returned by sensor transactions. Err holds the transport cause
// and is nil for BusDeviceClosed.
type BusError struct {
	Kind BusErrorKind
	Err  error
}

var (
	ErrWriteFailed  = &BusError{Kind: BusWriteFailed}
	ErrReadFailed   = &BusError{Kind: BusReadFailed}
	ErrDeviceClosed = &BusError{Kind: BusDeviceClosed}
)

func (e *BusError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Is matches any BusError of the same kind.
func (e *BusError) Is(target error) bool {
	var t *BusError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

type AcquisitionErrorKind int

const (
	AcquisitionNoController AcquisitionErrorKind = iota + 1
	AcquisitionAddressInUse
	AcquisitionEnumerationFailed
	AcquisitionOpenFailed
)

// AcquisitionError is fatal to startup; no sampling begins after it.
type AcquisitionError struct {
	Kind       AcquisitionErrorKind
	Address    byte
	Controller ControllerID
	Err        error
}

var (
	ErrNoController = &AcquisitionError{Kind: AcquisitionNoController}
	// ErrAddressInUse is also returned by providers when the slave address is claimed.
	ErrAddressInUse = &AcquisitionError{Kind: AcquisitionAddressInUse}
)

func (e *AcquisitionError) Error() string {
	switch e.Kind {
	case AcquisitionNoController:
		return "no I2C controllers were found on the system"
	case AcquisitionAddressInUse:
		if e.Controller == "" {
			return fmt.Sprintf("slave address %#x is currently in use", e.Address)
		}
		return fmt.Sprintf("slave address %#x on I2C controller %s is currently in use by another application", e.Address, e.Controller)
	case AcquisitionEnumerationFailed:
		return fmt.Sprintf("could not enumerate I2C controllers: %v", e.Err)
	case AcquisitionOpenFailed:
		return fmt.Sprintf("could not open slave address %#x on I2C controller %s: %v", e.Address, e.Controller, e.Err)
	}
	return "unknown acquisition error"
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

func (e *AcquisitionError) Is(target error) bool {
	var t *AcquisitionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}
