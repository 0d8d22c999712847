package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/tempmon"
)

var _ tempmon.I2CProvider = &GenericProvider{}
var _ tempmon.I2CHandle = &GenericHandle{}

// GenericProvider exposes the buses registered in periph's i2creg.
type GenericProvider struct {
	initOnce sync.Once
	initErr  error
	claims   claims

	init     func() error
	registry func() []string
	opener   func(name string) (i2c.BusCloser, error)
}

type GenericProviderOpt func(*GenericProvider)

// WithRegistry replaces host initialization, bus enumeration and opening.
// Used to run against i2ctest buses.
func WithRegistry(names func() []string, open func(name string) (i2c.BusCloser, error)) GenericProviderOpt {
	return func(p *GenericProvider) {
		p.init = func() error { return nil }
		p.registry = names
		p.opener = open
	}
}

func NewGenericProvider(opts ...GenericProviderOpt) *GenericProvider {
	p := &GenericProvider{
		init:     initHost,
		registry: registeredBuses,
		opener:   i2creg.Open,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func initHost() error {
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	return nil
}

func registeredBuses() []string {
	refs := i2creg.All()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names
}

func (p *GenericProvider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	p.initOnce.Do(func() {
		p.initErr = p.init()
	})
	if p.initErr != nil {
		return nil, p.initErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := p.registry()
	ids := make([]tempmon.ControllerID, 0, len(names))
	for _, name := range names {
		ids = append(ids, tempmon.ControllerID(name))
	}
	return ids, nil
}

func (p *GenericProvider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	release, err := p.claims.acquire(id, address)
	if err != nil {
		return nil, err
	}
	bus, err := p.opener(string(id))
	if err != nil {
		release()
		if errors.Is(err, syscall.EBUSY) {
			return nil, fmt.Errorf("could not open i2c bus %s: %w", id, tempmon.ErrAddressInUse)
		}
		return nil, fmt.Errorf("could not open i2c bus %s: %w", id, err)
	}
	err = bus.SetSpeed(physic.Frequency(speed.Hertz()) * physic.Hertz)
	if err != nil {
		// not every bus driver supports changing the clock
		slog.Warn("could not set i2c bus speed", "bus", id, "speed", speed, "error", err)
	}
	return &GenericHandle{
		bus:     bus,
		dev:     &i2c.Dev{Bus: bus, Addr: uint16(address)},
		release: release,
	}, nil
}

// GenericHandle is a device opened on a periph bus. The bus is owned by the handle.
type GenericHandle struct {
	bus     i2c.BusCloser
	dev     *i2c.Dev
	release func()
}

func (h *GenericHandle) Write(ctx context.Context, buffer []byte) error {
	err := h.dev.Tx(buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", h.dev.Addr, err)
	}
	return nil
}

// WriteRead issues a combined transaction with a repeated start.
func (h *GenericHandle) WriteRead(ctx context.Context, w, r []byte) error {
	err := h.dev.Tx(w, r)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", h.dev.Addr, err)
	}
	return nil
}

func (h *GenericHandle) Close() error {
	defer h.release()
	return h.bus.Close()
}

func (h *GenericHandle) String() string {
	return h.dev.String()
}
