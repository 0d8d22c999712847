// Package monitor wires acquisition, the sensor and the sampling loop into one
// session with a guaranteed release of the bus handle.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/acquire"
	"github.com/mklimuk/tempmon/sampler"
)

type Opts struct {
	Selector    acquire.Selector
	SamplerOpts []sampler.Opt
}

type Opt func(*Opts)

// WithSelector overrides the controller selection. It takes precedence over
// Config.Controller.
func WithSelector(selector acquire.Selector) Opt {
	return func(o *Opts) {
		o.Selector = selector
	}
}

func WithSamplerOpts(opts ...sampler.Opt) Opt {
	return func(o *Opts) {
		o.SamplerOpts = append(o.SamplerOpts, opts...)
	}
}

// FormatTemperature renders a reading the way it is shown to the user.
func FormatTemperature(celsius float64) string {
	return fmt.Sprintf("%.2f°C", celsius)
}

// Run acquires the sensor, samples it until ctx is done or the loop faults and
// releases the handle on every exit path. Startup failures are reported once
// on the display and returned.
func Run(ctx context.Context, provider tempmon.I2CProvider, display sampler.Display, cfg Config, opts ...Opt) error {
	if err := cfg.Validate(); err != nil {
		display.OnStatus(err.Error())
		return err
	}
	options := Opts{}
	for _, opt := range opts {
		opt(&options)
	}
	// WithSelector ignores nil so the configured controller stays in effect
	acquireOpts := append(cfg.AcquireOpts(), acquire.WithSelector(options.Selector))

	display.OnStatus("looking for I2C controllers")
	dev, err := acquire.Acquire(ctx, provider, acquireOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		display.OnStatus(err.Error())
		return err
	}
	defer func() {
		err := dev.Release()
		if err != nil {
			slog.Error("could not release sensor", "sensor", dev.String(), "error", err)
		}
	}()

	samplerOpts := append([]sampler.Opt{
		sampler.WithPeriod(cfg.Period),
		sampler.WithMaxConsecutiveFailures(cfg.MaxFailures),
	}, options.SamplerOpts...)
	loop := sampler.New(display, samplerOpts...)
	// Run stops its ticker before returning so the deferred release never
	// overlaps a transaction
	return loop.Run(ctx, dev)
}
