package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/karalabe/hid"

	"github.com/mklimuk/tempmon"
)

var _ tempmon.I2CProvider = &MCP2221Provider{}
var _ tempmon.I2CHandle = &MCP2221Handle{}

type ProviderOpt func(*MCP2221Provider)

// WithHID replaces USB enumeration and device opening.
func WithHID(enumerate func() []string, open func(path string) (HIDDevice, error)) ProviderOpt {
	return func(p *MCP2221Provider) {
		p.enumerate = enumerate
		p.open = open
	}
}

func WithDeviceOpts(opts ...MCP2221Opt) ProviderOpt {
	return func(p *MCP2221Provider) {
		p.deviceOpts = append(p.deviceOpts, opts...)
	}
}

type bridge struct {
	dev     *MCP2221
	speed   tempmon.BusSpeed
	handles int
}

type claim struct {
	path    string
	address byte
}

// MCP2221Provider offers every attached MCP2221 as an I2C controller. A bridge
// stays open while at least one handle uses it.
type MCP2221Provider struct {
	mx         sync.Mutex
	bridges    map[string]*bridge
	claimed    map[claim]struct{}
	enumerate  func() []string
	open       func(path string) (HIDDevice, error)
	deviceOpts []MCP2221Opt
}

func NewMCP2221Provider(opts ...ProviderOpt) *MCP2221Provider {
	p := &MCP2221Provider{
		bridges:   make(map[string]*bridge),
		claimed:   make(map[claim]struct{}),
		enumerate: enumerateHID,
		open:      openHID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func enumerateHID() []string {
	devs := hid.Enumerate(VendorID, ProductID)
	paths := make([]string, 0, len(devs))
	for _, dev := range devs {
		paths = append(paths, dev.Path)
	}
	return paths
}

func openHID(path string) (HIDDevice, error) {
	for _, info := range hid.Enumerate(VendorID, ProductID) {
		if info.Path != path {
			continue
		}
		dev, err := info.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("MCP2221 device %s not found", path)
}

func (p *MCP2221Provider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	paths := p.enumerate()
	ids := make([]tempmon.ControllerID, 0, len(paths))
	for _, path := range paths {
		ids = append(ids, tempmon.ControllerID(path))
	}
	return ids, nil
}

func (p *MCP2221Provider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	key := claim{path: string(id), address: address}
	if _, ok := p.claimed[key]; ok {
		return nil, fmt.Errorf("%s@%#x: %w", id, address, tempmon.ErrAddressInUse)
	}
	b, ok := p.bridges[string(id)]
	if !ok {
		hd, err := p.open(string(id))
		if err != nil {
			return nil, err
		}
		b = &bridge{dev: NewMCP2221(hd, p.deviceOpts...), speed: speed}
		err = b.dev.SetSpeed(ctx, speed)
		if err != nil {
			_ = b.dev.Close()
			return nil, fmt.Errorf("could not configure bridge %s: %w", id, err)
		}
		p.bridges[string(id)] = b
	} else if b.speed != speed {
		// the divider is shared by every slave behind the bridge
		return nil, fmt.Errorf("bridge %s already runs at %s, cannot open %#x at %s", id, b.speed, address, speed)
	}
	b.handles++
	p.claimed[key] = struct{}{}
	return &MCP2221Handle{
		provider: p,
		key:      key,
		dev:      b.dev,
	}, nil
}

func (p *MCP2221Provider) release(key claim) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if _, ok := p.claimed[key]; !ok {
		return nil
	}
	delete(p.claimed, key)
	b := p.bridges[key.path]
	b.handles--
	if b.handles > 0 {
		return nil
	}
	delete(p.bridges, key.path)
	return b.dev.Close()
}

// MCP2221Handle addresses one slave behind a bridge.
type MCP2221Handle struct {
	provider *MCP2221Provider
	key      claim
	dev      *MCP2221
}

func (h *MCP2221Handle) Write(ctx context.Context, buffer []byte) error {
	err := h.dev.WriteToAddr(ctx, h.key.address, buffer)
	if err != nil {
		h.cancelTransfer(ctx)
		return err
	}
	return nil
}

func (h *MCP2221Handle) WriteRead(ctx context.Context, w, r []byte) error {
	err := h.dev.WriteReadAddr(ctx, h.key.address, w, r)
	if err != nil {
		h.cancelTransfer(ctx)
		return err
	}
	return nil
}

// cancelTransfer leaves the engine idle for the next transaction.
func (h *MCP2221Handle) cancelTransfer(ctx context.Context) {
	_, err := h.dev.ReleaseBus(ctx)
	if err != nil {
		slog.Warn("could not cancel i2c transfer", "bridge", h.key.path, "error", err)
	}
}

func (h *MCP2221Handle) Close() error {
	err := h.provider.release(h.key)
	if err != nil {
		return fmt.Errorf("could not close bridge %s: %w", h.key.path, err)
	}
	return nil
}

func (h *MCP2221Handle) String() string {
	return fmt.Sprintf("mcp2221:%s@%#x", h.key.path, h.key.address)
}
