// Package acquire finds a bus controller and opens the temperature sensor on it.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/environment"
)

// Selector picks one controller out of a non-empty enumeration result.
type Selector func(ctx context.Context, controllers []tempmon.ControllerID) (tempmon.ControllerID, error)

// FirstController selects the first enumerated controller. No further
// disambiguation is attempted.
func FirstController(_ context.Context, controllers []tempmon.ControllerID) (tempmon.ControllerID, error) {
	return controllers[0], nil
}

// ControllerByID selects the controller with the given id; it is an error if
// the provider did not enumerate it.
func ControllerByID(id tempmon.ControllerID) Selector {
	return func(_ context.Context, controllers []tempmon.ControllerID) (tempmon.ControllerID, error) {
		for _, c := range controllers {
			if c == id {
				return c, nil
			}
		}
		return "", fmt.Errorf("controller %s not found among %v", id, controllers)
	}
}

type Opts struct {
	Address    byte
	Speed      tempmon.BusSpeed
	Selector   Selector
	Resolution environment.Resolution
}

type Opt func(*Opts)

func WithAddress(address byte) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

func WithSpeed(speed tempmon.BusSpeed) Opt {
	return func(o *Opts) {
		o.Speed = speed
	}
}

func WithSelector(selector Selector) Opt {
	return func(o *Opts) {
		if selector != nil {
			o.Selector = selector
		}
	}
}

func WithResolution(res environment.Resolution) Opt {
	return func(o *Opts) {
		o.Resolution = res
	}
}

// Acquire enumerates controllers, selects one and opens the sensor on it. The
// returned device is not configured yet. Every failure is terminal and
// returned as a *tempmon.AcquisitionError, except context cancellation and
// selector errors.
func Acquire(ctx context.Context, provider tempmon.I2CProvider, opts ...Opt) (*environment.ADT7410, error) {
	config := Opts{
		Address:  environment.ADT7410DefaultAddress,
		Speed:    tempmon.BusSpeedFast,
		Selector: FirstController,
	}
	for _, opt := range opts {
		opt(&config)
	}

	controllers, err := await(ctx, func() ([]tempmon.ControllerID, error) {
		return provider.Controllers(ctx)
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &tempmon.AcquisitionError{Kind: tempmon.AcquisitionEnumerationFailed, Err: err}
	}
	if len(controllers) == 0 {
		return nil, &tempmon.AcquisitionError{Kind: tempmon.AcquisitionNoController}
	}
	slog.Debug("i2c controllers enumerated", "count", len(controllers), "controllers", controllers)

	id, err := config.Selector(ctx, controllers)
	if err != nil {
		return nil, fmt.Errorf("could not select i2c controller: %w", err)
	}

	handle, err := await(ctx, func() (tempmon.I2CHandle, error) {
		return provider.Open(ctx, id, config.Address, config.Speed)
	}, func(h tempmon.I2CHandle) {
		if h != nil {
			_ = h.Close()
		}
	})
	switch {
	case ctx.Err() != nil:
		if handle != nil {
			_ = handle.Close()
		}
		return nil, ctx.Err()
	case errors.Is(err, tempmon.ErrAddressInUse), err == nil && handle == nil:
		return nil, &tempmon.AcquisitionError{Kind: tempmon.AcquisitionAddressInUse, Address: config.Address, Controller: id}
	case err != nil:
		return nil, &tempmon.AcquisitionError{Kind: tempmon.AcquisitionOpenFailed, Address: config.Address, Controller: id, Err: err}
	}
	slog.Info("temperature sensor opened", "controller", id, "addr", fmt.Sprintf("%#x", config.Address), "speed", config.Speed)
	return environment.NewADT7410(handle,
		environment.WithADT7410Address(config.Address),
		environment.WithResolution(config.Resolution),
	), nil
}

type result[T any] struct {
	val T
	err error
}

// await runs fn without blocking the caller past ctx cancellation. When the
// caller gave up, discard receives the late result so resources can be freed.
func await[T any](ctx context.Context, fn func() (T, error), discard func(T)) (T, error) {
	ch := make(chan result[T], 1)
	go func() {
		val, err := fn()
		ch <- result[T]{val: val, err: err}
	}()
	select {
	case res := <-ch:
		return res.val, res.err
	case <-ctx.Done():
		go func() {
			res := <-ch
			if discard != nil {
				discard(res.val)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}
