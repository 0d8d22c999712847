package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// engine clock of the I2C/SMBus master
const mcp2221Clock = 12_000_000

const (
	cmdStatus            byte = 0x10
	cmdWriteData         byte = 0x90
	cmdReadRepeatedStart byte = 0x93
	cmdWriteNoStop       byte = 0x94
	cmdGetData           byte = 0x40
)

const (
	statusCancelTransfer byte = 0x10
	statusSetSpeed       byte = 0x20
	statusSpeedRejected  byte = 0x21
	respBusy             byte = 0x01
	respReadError        byte = 0x41
	respInvalidLength    byte = 127
)

var ErrCommandFailed = errors.New("command failed")

// HIDDevice is an open HID interface exchanging 64 byte reports.
type HIDDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// MCP2221 talks to one opened USB-I2C bridge. Commands are serialized.
type MCP2221 struct {
	mx           sync.Mutex
	dev          HIDDevice
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	CancelStatus           string `yaml:"cancel_status"`
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opt func(*MCP2221)

// WithResponseWait sets the delay between a request and reading its response.
func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(dev HIDDevice, opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		dev:          dev,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenFirstMCP2221 opens the first bridge found on the USB bus.
func OpenFirstMCP2221(opts ...MCP2221Opt) (*MCP2221, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if len(devs) > 1 {
		slog.Warn("several MCP2221 devices found, using the first one", "path", devs[0].Path)
	}
	dev, err := devs[0].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return NewMCP2221(dev, opts...), nil
}

// SpeedDivider returns the divider the bridge expects for the given clock.
func SpeedDivider(hz int64) byte {
	return byte(mcp2221Clock/hz - 3)
}

func (d *MCP2221) SetSpeed(ctx context.Context, speed tempmon.BusSpeed) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = statusSetSpeed
	d.request[4] = SpeedDivider(speed.Hertz())
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	if d.response[3] == statusSpeedRejected {
		// a transfer is in progress
		return fmt.Errorf("speed %s rejected: %w", speed, tempmon.ErrBusBusy)
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.write(ctx, cmdWriteData, address, buffer)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	return nil
}

// WriteReadAddr writes w without a stop condition and reads r after a
// repeated start.
func (d *MCP2221) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.write(ctx, cmdWriteNoStop, address, w)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	err = d.read(ctx, cmdReadRepeatedStart, address, r)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > reportSize-4 {
		return fmt.Errorf("payload of %d bytes does not fit a single report", len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return err
	}
	if d.response[1] == respBusy {
		slog.Debug("adapter busy")
		return tempmon.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > reportSize-4 {
		return fmt.Errorf("read of %d bytes does not fit a single report", len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return err
	}
	if d.response[1] == respBusy {
		slog.Debug("adapter busy")
		return tempmon.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == respReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if d.response[3] == respInvalidLength || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// ReleaseBus cancels the current transfer and frees the bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.dev.Close()
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		2: cancel transfer status
		9-10: requested I2C transfer length
		11-12: already transferred number of bytes
		13: internal I2C data buffer counter
		14: current I2C communication speed divider value
		15: current I2C timeout value
		16-17: I2C address being used
		25: read pending
	*/
	status := &MCP2221Status{
		CancelStatus:         cancelStatus(buffer[2]),
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func cancelStatus(b byte) string {
	switch b {
	case 0x00:
		return "none"
	case 0x10:
		return "marked for cancellation"
	case 0x11:
		return "already idle"
	default:
		return fmt.Sprintf("unknown (%#x)", b)
	}
}

func (d *MCP2221) send(ctx context.Context) error {
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "dump", "\n"+hex.Dump(d.request))
	}
	n, err := d.dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.responseWait):
		}
	}
	n, err = d.dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("response to command %#x answers %#x", d.request[0], d.response[0])
	}
	if verbose {
		slog.Debug("read message from adapter", "dump", "\n"+hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
