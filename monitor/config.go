package monitor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/acquire"
	"github.com/mklimuk/tempmon/environment"
	"github.com/mklimuk/tempmon/sampler"
)

// Config holds the monitor settings. Zero-config runs use DefaultConfig, which
// matches the sensor board wiring: 0x48, fast mode, 500ms.
type Config struct {
	Backend     string        `yaml:"backend"`
	Controller  string        `yaml:"controller"`
	Address     uint8         `yaml:"address"`
	Speed       string        `yaml:"speed"`
	Period      time.Duration `yaml:"period"`
	MaxFailures int           `yaml:"max_consecutive_failures"`
	Resolution  int           `yaml:"resolution"`
}

func DefaultConfig() Config {
	return Config{
		Backend:     "periph",
		Address:     environment.ADT7410DefaultAddress,
		Speed:       tempmon.BusSpeedFast.String(),
		Period:      sampler.DefaultPeriod,
		MaxFailures: sampler.DefaultMaxConsecutiveFailures,
		Resolution:  16,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Address < 0x08 || c.Address > 0x77 {
		return fmt.Errorf("invalid slave address %#x: must be within 0x08-0x77", c.Address)
	}
	if _, err := tempmon.ParseBusSpeed(c.Speed); err != nil {
		return err
	}
	if c.Period <= 0 {
		return fmt.Errorf("invalid sampling period %s", c.Period)
	}
	if c.MaxFailures < 0 {
		return fmt.Errorf("invalid max consecutive failures %d", c.MaxFailures)
	}
	if _, err := c.resolution(); err != nil {
		return err
	}
	return nil
}

// AcquireOpts translates a validated config into acquisition options.
func (c Config) AcquireOpts() []acquire.Opt {
	res, _ := c.resolution()
	opts := []acquire.Opt{
		acquire.WithAddress(c.Address),
		acquire.WithSpeed(c.busSpeed()),
		acquire.WithResolution(res),
	}
	if c.Controller != "" {
		opts = append(opts, acquire.WithSelector(acquire.ControllerByID(tempmon.ControllerID(c.Controller))))
	}
	return opts
}

func (c Config) busSpeed() tempmon.BusSpeed {
	speed, _ := tempmon.ParseBusSpeed(c.Speed)
	return speed
}

func (c Config) resolution() (environment.Resolution, error) {
	switch c.Resolution {
	case 0, 16:
		return environment.Resolution16Bit, nil
	case 13:
		return environment.Resolution13Bit, nil
	}
	return environment.Resolution16Bit, fmt.Errorf("unsupported resolution %d: use 13 or 16", c.Resolution)
}
