// Package sampler drives periodic temperature reads and reports them to a display.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const DefaultPeriod = 500 * time.Millisecond
const DefaultMaxConsecutiveFailures = 10

var ErrAlreadyStarted = errors.New("sampler: loop already started")
var ErrTooManyFailures = errors.New("sampler: too many consecutive read failures")

type State int32

const (
	StateUninitialized State = iota
	StateConfiguring
	StateSampling
	StateFaulted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateSampling:
		return "sampling"
	case StateFaulted:
		return "faulted"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Sensor is the part of the device the loop uses. The loop never releases it.
type Sensor interface {
	WriteConfig(ctx context.Context) error
	ReadTemperature(ctx context.Context) (float64, error)
}

// Display receives human readable status lines and decoded samples.
type Display interface {
	OnStatus(text string)
	OnSample(celsius float64, index uint64)
}

type Opts struct {
	Period time.Duration
	// MaxConsecutiveFailures faults the loop after that many failed reads in
	// a row; zero retries forever.
	MaxConsecutiveFailures int
	NewTicker              TickerFactory
	Now                    func() time.Time
}

type Opt func(*Opts)

func WithPeriod(period time.Duration) Opt {
	return func(o *Opts) {
		if period > 0 {
			o.Period = period
		}
	}
}

func WithMaxConsecutiveFailures(n int) Opt {
	return func(o *Opts) {
		if n >= 0 {
			o.MaxConsecutiveFailures = n
		}
	}
}

func WithTicker(factory TickerFactory) Opt {
	return func(o *Opts) {
		if factory != nil {
			o.NewTicker = factory
		}
	}
}

func WithClock(now func() time.Time) Opt {
	return func(o *Opts) {
		if now != nil {
			o.Now = now
		}
	}
}

// Loop is a single-use sampling state machine.
type Loop struct {
	config   Opts
	display  Display
	state    atomic.Int32
	samples  atomic.Uint64
	failures int
	skipped  int
}

func New(display Display, opts ...Opt) *Loop {
	config := Opts{
		Period:                 DefaultPeriod,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		NewTicker:              NewTimeTicker,
		Now:                    time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Loop{config: config, display: display}
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Samples returns the number of samples forwarded so far.
func (l *Loop) Samples() uint64 {
	return l.samples.Load()
}

// Run configures the sensor and samples it on every tick until ctx is done
// or the loop faults. The ticker is stopped before Run returns, so the caller
// may release the sensor right after. Cancellation is not an error.
func (l *Loop) Run(ctx context.Context, sensor Sensor) error {
	if !l.state.CompareAndSwap(int32(StateUninitialized), int32(StateConfiguring)) {
		return ErrAlreadyStarted
	}
	l.display.OnStatus("configuring sensor")
	err := sensor.WriteConfig(ctx)
	if err != nil {
		l.setState(StateFaulted)
		l.display.OnStatus(fmt.Sprintf("cannot configure sensor: %v", err))
		return fmt.Errorf("sampler: configuration failed: %w", err)
	}

	ticker := l.config.NewTicker(l.config.Period)
	defer ticker.Stop()
	l.setState(StateSampling)
	l.display.OnStatus("sampling")
	slog.Debug("sampling started", "period", l.config.Period)

	for {
		select {
		case <-ctx.Done():
			l.setState(StateStopped)
			slog.Debug("sampling stopped", "samples", l.Samples(), "skipped", l.skipped)
			return nil
		case <-ticker.C():
			start := l.config.Now()
			err := l.tick(ctx, sensor)
			if err != nil {
				l.setState(StateFaulted)
				l.display.OnStatus(err.Error())
				return err
			}
			if elapsed := l.config.Now().Sub(start); elapsed >= l.config.Period {
				l.skipPending(ticker, elapsed)
			}
		}
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// tick performs one read. A returned error is terminal.
func (l *Loop) tick(ctx context.Context, sensor Sensor) error {
	temp, err := safeRead(ctx, sensor)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.failures++
		slog.Warn("temperature read failed", "consecutive", l.failures, "error", err)
		l.display.OnStatus(fmt.Sprintf("read failed (%d in a row): %v", l.failures, err))
		if l.config.MaxConsecutiveFailures > 0 && l.failures >= l.config.MaxConsecutiveFailures {
			return fmt.Errorf("%w: %d: last error: %w", ErrTooManyFailures, l.failures, err)
		}
		return nil
	}
	l.failures = 0
	index := l.samples.Load()
	l.display.OnSample(temp, index)
	l.samples.Add(1)
	l.display.OnStatus(fmt.Sprintf("sampling count = %d", index))
	return nil
}

// skipPending drops a tick that became due while the last read was running.
func (l *Loop) skipPending(ticker Ticker, elapsed time.Duration) {
	select {
	case <-ticker.C():
		l.skipped++
		slog.Debug("sampling tick skipped", "elapsed", elapsed, "period", l.config.Period, "skipped", l.skipped)
	default:
	}
}

func safeRead(ctx context.Context, sensor Sensor) (temp float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return sensor.ReadTemperature(ctx)
}
