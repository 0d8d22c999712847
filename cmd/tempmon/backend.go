package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/adapter"
	"github.com/mklimuk/tempmon/i2c"
	"github.com/mklimuk/tempmon/monitor"
)

const (
	backendPeriph  = "periph"
	backendNanoPi  = "nanopi"
	backendMCP2221 = "mcp2221"
	backendMock    = "mock"
)

var backends = []string{backendPeriph, backendNanoPi, backendMCP2221, backendMock}

func newProvider(backend string) (tempmon.I2CProvider, error) {
	switch backend {
	case backendPeriph:
		return i2c.NewGenericProvider(), nil
	case backendNanoPi:
		return i2c.NewNanoPiProvider(), nil
	case backendMCP2221:
		return adapter.NewMCP2221Provider(), nil
	case backendMock:
		return &simulatedProvider{start: time.Now()}, nil
	}
	return nil, fmt.Errorf("unknown backend %q: use one of %s", backend, strings.Join(backends, ", "))
}

var configFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML configuration file",
	},
	&cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "bus backend: " + strings.Join(backends, ", "),
		Value:   backendPeriph,
	},
	&cli.StringFlag{
		Name:  "controller",
		Usage: "controller to use instead of the first enumerated one",
	},
	&cli.StringFlag{
		Name:  "address",
		Usage: "sensor slave address",
		Value: "0x48",
	},
	&cli.StringFlag{
		Name:  "speed",
		Usage: "bus speed: fast or standard",
		Value: tempmon.BusSpeedFast.String(),
	},
	&cli.IntFlag{
		Name:  "resolution",
		Usage: "conversion resolution in bits: 16 or 13",
		Value: 16,
	},
}

// loadConfig reads the config file if given and applies the flags set on the
// command line on top of it.
func loadConfig(c *cli.Context) (monitor.Config, error) {
	cfg := monitor.DefaultConfig()
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = monitor.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("backend") || c.String("config") == "" {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("controller") {
		cfg.Controller = c.String("controller")
	}
	if c.IsSet("address") {
		addr, err := strconv.ParseUint(c.String("address"), 0, 8)
		if err != nil {
			return cfg, fmt.Errorf("invalid address %q: %w", c.String("address"), err)
		}
		cfg.Address = uint8(addr)
	}
	if c.IsSet("speed") {
		cfg.Speed = c.String("speed")
	}
	if c.IsSet("resolution") {
		cfg.Resolution = c.Int("resolution")
	}
	if c.IsSet("period") {
		cfg.Period = c.Duration("period")
	}
	if c.IsSet("max-failures") {
		cfg.MaxFailures = c.Int("max-failures")
	}
	return cfg, cfg.Validate()
}

// simulatedProvider drives the monitor without hardware. The reading follows
// a slow sine around room temperature.
type simulatedProvider struct {
	start time.Time
}

func (p *simulatedProvider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	return []tempmon.ControllerID{"sim0"}, nil
}

func (p *simulatedProvider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	return &simulatedHandle{start: p.start, now: time.Now}, nil
}

type simulatedHandle struct {
	start time.Time
	now   func() time.Time
}

func (h *simulatedHandle) Write(ctx context.Context, buffer []byte) error {
	return nil
}

func (h *simulatedHandle) WriteRead(ctx context.Context, w, r []byte) error {
	minutes := h.now().Sub(h.start).Minutes()
	celsius := 21.5 + 2*math.Sin(2*math.Pi*minutes/10)
	raw := uint16(int16(math.Round(celsius * 128)))
	r[0] = byte(raw >> 8)
	r[1] = byte(raw)
	return nil
}

func (h *simulatedHandle) Close() error {
	return nil
}
