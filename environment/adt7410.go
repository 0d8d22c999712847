package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/tempmon"
)

// ADT7410 represents an Analog Devices ADT7410 digital temperature sensor
// (and register compatible parts) behind an opened I2C handle.
// See: https://www.analog.com/media/en/technical-documentation/data-sheets/ADT7410.pdf
//
// Usage: obtain one from acquire.Acquire (or NewADT7410), call WriteConfig once,
// then ReadTemperature periodically and finally Release.
type ADT7410 struct {
	mx         sync.Mutex
	handle     tempmon.I2CHandle
	closed     bool
	address    byte
	resolution Resolution
	buf        []byte
}

type ADT7410Config struct {
	Address    byte
	Resolution Resolution
}

type ADT7410ConfigOption func(*ADT7410Config)

// WithADT7410Address records the slave address the handle was opened at.
func WithADT7410Address(address byte) ADT7410ConfigOption {
	return func(c *ADT7410Config) {
		c.Address = address
	}
}

func WithResolution(res Resolution) ADT7410ConfigOption {
	return func(c *ADT7410Config) {
		c.Resolution = res
	}
}

// NewADT7410 takes ownership of the handle. It is closed by Release.
func NewADT7410(handle tempmon.I2CHandle, opts ...ADT7410ConfigOption) *ADT7410 {
	config := &ADT7410Config{
		Address:    ADT7410DefaultAddress,
		Resolution: Resolution16Bit,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &ADT7410{
		handle:     handle,
		address:    config.Address,
		resolution: config.Resolution,
		buf:        make([]byte, 2),
	}
}

// WriteConfig writes the configuration register. A single attempt is made.
func (sensor *ADT7410) WriteConfig(ctx context.Context) error {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if sensor.closed {
		return fmt.Errorf("adt7410: %w", tempmon.ErrDeviceClosed)
	}
	err := sensor.handle.Write(ctx, EncodeConfigFor(sensor.resolution))
	if err != nil {
		return fmt.Errorf("adt7410: could not write configuration: %w", &tempmon.BusError{Kind: tempmon.BusWriteFailed, Err: err})
	}
	slog.Debug("adt7410 configured", "addr", fmt.Sprintf("%#x", sensor.address), "resolution", sensor.resolution)
	return nil
}

// ReadTemperature reads the temperature registers in one write-then-read
// transaction and returns degrees Celsius.
func (sensor *ADT7410) ReadTemperature(ctx context.Context) (float64, error) {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if sensor.closed {
		return 0, fmt.Errorf("adt7410: %w", tempmon.ErrDeviceClosed)
	}
	sensor.buf[0], sensor.buf[1] = 0, 0
	err := sensor.handle.WriteRead(ctx, []byte{adt7410TempRegister}, sensor.buf)
	if err != nil {
		return 0, fmt.Errorf("adt7410: could not read temperature: %w", &tempmon.BusError{Kind: tempmon.BusReadFailed, Err: err})
	}
	return decode(sensor.resolution, RawSample{sensor.buf[0], sensor.buf[1]}), nil
}

// Release closes the handle. It waits for a transaction in progress; calls
// after the first one are no-ops.
func (sensor *ADT7410) Release() error {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if sensor.closed {
		return nil
	}
	sensor.closed = true
	err := sensor.handle.Close()
	if err != nil {
		return fmt.Errorf("adt7410: could not release handle: %w", err)
	}
	return nil
}

func (sensor *ADT7410) String() string {
	return fmt.Sprintf("adt7410@%#x", sensor.address)
}
