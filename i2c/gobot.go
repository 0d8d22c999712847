package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	gi2c "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/tempmon"
)

// DefaultNanoPiBus is the bus exposed on the NanoPi NEO header.
const DefaultNanoPiBus = 2

var _ tempmon.I2CProvider = &GobotProvider{}
var _ tempmon.I2CHandle = &GobotHandle{}

// GobotDriver is the part of gobot's generic i2c driver used by the handle.
type GobotDriver interface {
	Start() error
	Halt() error
	Write(data []byte) error
	ReadBlockData(reg uint8, data []byte) error
}

type GobotDriverFactory func(bus int, address byte) GobotDriver

type GobotProviderOpt func(*GobotProvider)

// WithBuses sets the bus numbers offered as controllers.
func WithBuses(buses ...int) GobotProviderOpt {
	return func(p *GobotProvider) {
		p.buses = buses
	}
}

// WithGobotDriver replaces the adaptor and the driver construction.
func WithGobotDriver(connect, finalize func() error, factory GobotDriverFactory) GobotProviderOpt {
	return func(p *GobotProvider) {
		p.connect = connect
		p.finalize = finalize
		p.factory = factory
	}
}

// GobotProvider opens devices through a gobot NanoPi adaptor. The adaptor is
// connected with the first handle and finalized with the last one.
type GobotProvider struct {
	mx       sync.Mutex
	open     int
	buses    []int
	claims   claims
	connect  func() error
	finalize func() error
	factory  GobotDriverFactory
}

func NewNanoPiProvider(opts ...GobotProviderOpt) *GobotProvider {
	npi := nanopi.NewNeoAdaptor()
	p := &GobotProvider{
		buses:    []int{DefaultNanoPiBus},
		connect:  npi.I2cBusAdaptor.Connect,
		finalize: npi.I2cBusAdaptor.Finalize,
		factory: func(bus int, address byte) GobotDriver {
			return gi2c.NewGenericDriver(npi, "adt7410", int(address), func(c gi2c.Config) {
				c.SetBus(bus)
			})
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GobotProvider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	ids := make([]tempmon.ControllerID, 0, len(p.buses))
	for _, bus := range p.buses {
		ids = append(ids, tempmon.ControllerID(strconv.Itoa(bus)))
	}
	return ids, nil
}

func (p *GobotProvider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	bus, err := strconv.Atoi(string(id))
	if err != nil {
		return nil, fmt.Errorf("invalid gobot bus number %q: %w", id, err)
	}
	release, err := p.claims.acquire(id, address)
	if err != nil {
		return nil, err
	}
	err = p.acquireAdaptor()
	if err != nil {
		release()
		return nil, err
	}
	driver := p.factory(bus, address)
	err = driver.Start()
	if err != nil {
		release()
		p.releaseAdaptor()
		return nil, fmt.Errorf("could not start i2c driver on bus %d: %w", bus, err)
	}
	// the sysfs bus clock is fixed by the device tree
	slog.Debug("bus speed is not configurable with gobot", "bus", bus, "requested", speed)
	var once sync.Once
	return &GobotHandle{
		bus:     bus,
		address: address,
		driver:  driver,
		release: func() {
			once.Do(func() {
				release()
				p.releaseAdaptor()
			})
		},
	}, nil
}

func (p *GobotProvider) acquireAdaptor() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.open == 0 {
		err := p.connect()
		if err != nil {
			return fmt.Errorf("adaptor connect error: %w", err)
		}
	}
	p.open++
	return nil
}

func (p *GobotProvider) releaseAdaptor() {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.open--
	if p.open > 0 {
		return
	}
	err := p.finalize()
	if err != nil {
		slog.Warn("adaptor finalize error", "error", err)
	}
}

type GobotHandle struct {
	bus     int
	address byte
	driver  GobotDriver
	release func()
}

func (h *GobotHandle) Write(ctx context.Context, buffer []byte) error {
	err := h.driver.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %d at %#x: %w", h.bus, h.address, err)
	}
	return nil
}

// WriteRead supports a single register byte. gobot sends it with the read in
// one combined transfer when the bus supports I2C block reads, otherwise as a
// write followed by a separate read.
func (h *GobotHandle) WriteRead(ctx context.Context, w, r []byte) error {
	if len(w) != 1 {
		return fmt.Errorf("gobot combined transfer needs a single register byte, got %d", len(w))
	}
	err := h.driver.ReadBlockData(w[0], r)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %d at %#x: %w", h.bus, h.address, err)
	}
	return nil
}

func (h *GobotHandle) Close() error {
	defer h.release()
	err := h.driver.Halt()
	if err != nil {
		return fmt.Errorf("could not halt i2c driver: %w", err)
	}
	return nil
}

func (h *GobotHandle) String() string {
	return fmt.Sprintf("gobot-i2c-%d@%#x", h.bus, h.address)
}
