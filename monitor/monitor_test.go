package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/sampler"
)

type event string

type scriptedHandle struct {
	mx     sync.Mutex
	events []event
	closed bool
	t      *testing.T
}

func (h *scriptedHandle) record(e event) {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.closed {
		h.t.Errorf("%s issued after close", e)
	}
	h.events = append(h.events, e)
}

func (h *scriptedHandle) Write(ctx context.Context, buffer []byte) error {
	h.record("write")
	return nil
}

func (h *scriptedHandle) WriteRead(ctx context.Context, w, r []byte) error {
	h.record("read")
	copy(r, []byte{0x0C, 0x80})
	return nil
}

func (h *scriptedHandle) Close() error {
	h.record("close")
	h.mx.Lock()
	defer h.mx.Unlock()
	h.closed = true
	return nil
}

func (h *scriptedHandle) snapshot() []event {
	h.mx.Lock()
	defer h.mx.Unlock()
	return append([]event(nil), h.events...)
}

type staticProvider struct {
	controllers []tempmon.ControllerID
	handle      tempmon.I2CHandle
	openedOn    tempmon.ControllerID
	openedAddr  byte
}

func (p *staticProvider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	return p.controllers, nil
}

func (p *staticProvider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	p.openedOn = id
	p.openedAddr = address
	return p.handle, nil
}

type recordingDisplay struct {
	mx       sync.Mutex
	statuses []string
	samples  []float64
}

func (d *recordingDisplay) OnStatus(text string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.statuses = append(d.statuses, text)
}

func (d *recordingDisplay) OnSample(celsius float64, index uint64) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.samples = append(d.samples, celsius)
}

func (d *recordingDisplay) sampleCount() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.samples)
}

func TestRun_NoController(t *testing.T) {
	display := &recordingDisplay{}
	err := Run(context.Background(), &staticProvider{}, display, DefaultConfig())
	assert.ErrorIs(t, err, tempmon.ErrNoController)
	assert.Equal(t, 0, display.sampleCount())
	assert.Equal(t, "no I2C controllers were found on the system", display.statuses[len(display.statuses)-1])
}

func TestRun_AddressInUse(t *testing.T) {
	display := &recordingDisplay{}
	provider := &staticProvider{controllers: []tempmon.ControllerID{"I2C1"}}
	err := Run(context.Background(), provider, display, DefaultConfig())
	assert.ErrorIs(t, err, tempmon.ErrAddressInUse)
	assert.Contains(t, display.statuses[len(display.statuses)-1], "slave address 0x48 on I2C controller I2C1")
}

func TestRun_ReleasesAfterSamplingStops(t *testing.T) {
	handle := &scriptedHandle{t: t}
	provider := &staticProvider{controllers: []tempmon.ControllerID{"I2C1", "I2C2"}, handle: handle}
	display := &recordingDisplay{}
	cfg := DefaultConfig()
	cfg.Controller = "I2C2"
	cfg.Period = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, provider, display, cfg)
	}()
	require.Eventually(t, func() bool { return display.sampleCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, tempmon.ControllerID("I2C2"), provider.openedOn)
	assert.Equal(t, byte(0x48), provider.openedAddr)
	events := handle.snapshot()
	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, event("write"), events[0])
	assert.Equal(t, event("close"), events[len(events)-1])
	for _, e := range events[1 : len(events)-1] {
		assert.Equal(t, event("read"), e)
	}
}

func TestRun_ReleasesOnDeadline(t *testing.T) {
	handle := &scriptedHandle{t: t}
	provider := &staticProvider{controllers: []tempmon.ControllerID{"I2C1"}, handle: handle}
	display := &recordingDisplay{}
	cfg := DefaultConfig()
	cfg.Address = 0x49

	neverTicks := func(period time.Duration) sampler.Ticker { return sampler.NewTimeTicker(time.Hour) }
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Run(ctx, provider, display, cfg, WithSamplerOpts(sampler.WithTicker(neverTicks)))
	require.NoError(t, err)
	assert.Equal(t, byte(0x49), provider.openedAddr)
	assert.Equal(t, []event{"write", "close"}, handle.snapshot())
}

func TestRun_InvalidConfig(t *testing.T) {
	display := &recordingDisplay{}
	cfg := DefaultConfig()
	cfg.Speed = "warp"
	err := Run(context.Background(), &staticProvider{}, display, cfg)
	assert.ErrorContains(t, err, "unknown bus speed")
	assert.NotEmpty(t, display.statuses)
}

func TestFormatTemperature(t *testing.T) {
	assert.Equal(t, "25.00°C", FormatTemperature(25))
	assert.Equal(t, "-0.01°C", FormatTemperature(-0.01))
	assert.Equal(t, "255.99°C", FormatTemperature(255.99))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tempmon.yaml")
	err := os.WriteFile(path, []byte(`backend: mcp2221
address: 0x49
speed: standard
period: 250ms
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mcp2221", cfg.Backend)
	assert.Equal(t, uint8(0x49), cfg.Address)
	assert.Equal(t, "standard", cfg.Speed)
	assert.Equal(t, 250*time.Millisecond, cfg.Period)
	// not in the file
	assert.Equal(t, sampler.DefaultMaxConsecutiveFailures, cfg.MaxFailures)
	assert.Equal(t, 16, cfg.Resolution)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"address", "address: 0x90\n", "invalid slave address"},
		{"resolution", "resolution: 12\n", "unsupported resolution"},
		{"unknown key", "colour: blue\n", "field colour not found"},
		{"period", "period: -1s\n", "invalid sampling period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tempmon.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadConfig(path)
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestLoadConfig_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempmon.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
