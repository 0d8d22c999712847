package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tempmon"
)

type fakeHandle struct {
	mx     sync.Mutex
	closed int
}

func (h *fakeHandle) Write(ctx context.Context, buffer []byte) error { return nil }

func (h *fakeHandle) WriteRead(ctx context.Context, w, r []byte) error {
	copy(r, []byte{0x0C, 0x80})
	return nil
}

func (h *fakeHandle) Close() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.closed
}

type openCall struct {
	id      tempmon.ControllerID
	address byte
	speed   tempmon.BusSpeed
}

type fakeProvider struct {
	controllers []tempmon.ControllerID
	enumErr     error
	handle      tempmon.I2CHandle
	openErr     error
	openDelay   time.Duration
	opened      chan openCall
}

func (p *fakeProvider) Controllers(ctx context.Context) ([]tempmon.ControllerID, error) {
	return p.controllers, p.enumErr
}

func (p *fakeProvider) Open(ctx context.Context, id tempmon.ControllerID, address byte, speed tempmon.BusSpeed) (tempmon.I2CHandle, error) {
	if p.openDelay > 0 {
		time.Sleep(p.openDelay)
	}
	if p.opened != nil {
		p.opened <- openCall{id: id, address: address, speed: speed}
	}
	return p.handle, p.openErr
}

func TestAcquire_NoController(t *testing.T) {
	provider := &fakeProvider{}
	dev, err := Acquire(context.Background(), provider)
	assert.Nil(t, dev)
	assert.ErrorIs(t, err, tempmon.ErrNoController)
}

func TestAcquire_EnumerationFailed(t *testing.T) {
	provider := &fakeProvider{enumErr: errors.New("no host drivers")}
	_, err := Acquire(context.Background(), provider)
	var acqErr *tempmon.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, tempmon.AcquisitionEnumerationFailed, acqErr.Kind)
	assert.Contains(t, err.Error(), "no host drivers")
}

func TestAcquire_SelectsFirstController(t *testing.T) {
	handle := &fakeHandle{}
	provider := &fakeProvider{
		controllers: []tempmon.ControllerID{"I2C1", "I2C2"},
		handle:      handle,
		opened:      make(chan openCall, 1),
	}
	dev, err := Acquire(context.Background(), provider)
	require.NoError(t, err)
	require.NotNil(t, dev)

	call := <-provider.opened
	assert.Equal(t, tempmon.ControllerID("I2C1"), call.id)
	assert.Equal(t, byte(0x48), call.address)
	assert.Equal(t, tempmon.BusSpeedFast, call.speed)

	temp, err := dev.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25.0, temp)
	assert.Equal(t, 0, handle.closeCount(), "acquire must hand over the open handle")
}

func TestAcquire_Options(t *testing.T) {
	provider := &fakeProvider{
		controllers: []tempmon.ControllerID{"I2C1", "I2C2"},
		handle:      &fakeHandle{},
		opened:      make(chan openCall, 1),
	}
	_, err := Acquire(context.Background(), provider,
		WithSelector(ControllerByID("I2C2")),
		WithAddress(0x49),
		WithSpeed(tempmon.BusSpeedStandard),
	)
	require.NoError(t, err)
	call := <-provider.opened
	assert.Equal(t, openCall{id: "I2C2", address: 0x49, speed: tempmon.BusSpeedStandard}, call)
}

func TestAcquire_SelectorFailure(t *testing.T) {
	provider := &fakeProvider{controllers: []tempmon.ControllerID{"I2C1"}}
	_, err := Acquire(context.Background(), provider, WithSelector(ControllerByID("I2C9")))
	assert.ErrorContains(t, err, "controller I2C9 not found")
}

func TestAcquire_AddressInUse(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
	}{
		{"nil handle", nil},
		{"sentinel", fmt.Errorf("periph: %w", tempmon.ErrAddressInUse)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{controllers: []tempmon.ControllerID{"I2C1"}, openErr: tt.openErr}
			_, err := Acquire(context.Background(), provider)
			var acqErr *tempmon.AcquisitionError
			require.ErrorAs(t, err, &acqErr)
			assert.Equal(t, tempmon.AcquisitionAddressInUse, acqErr.Kind)
			assert.Equal(t, byte(0x48), acqErr.Address)
			assert.Equal(t, tempmon.ControllerID("I2C1"), acqErr.Controller)
		})
	}
}

func TestAcquire_OpenFailed(t *testing.T) {
	provider := &fakeProvider{controllers: []tempmon.ControllerID{"I2C1"}, openErr: errors.New("permission denied")}
	_, err := Acquire(context.Background(), provider)
	var acqErr *tempmon.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, tempmon.AcquisitionOpenFailed, acqErr.Kind)
	assert.NotErrorIs(t, err, tempmon.ErrAddressInUse)
}

func TestAcquire_CancelledWhileOpening(t *testing.T) {
	handle := &fakeHandle{}
	provider := &fakeProvider{
		controllers: []tempmon.ControllerID{"I2C1"},
		handle:      handle,
		openDelay:   50 * time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	dev, err := Acquire(ctx, provider)
	assert.Nil(t, dev)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "acquire should not wait for the open to finish")

	assert.Eventually(t, func() bool { return handle.closeCount() == 1 }, time.Second, 5*time.Millisecond,
		"late handle must be released")
}
