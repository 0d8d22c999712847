package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tempmon"
	"github.com/mklimuk/tempmon/environment"
)

type fakeDriver struct {
	bus      int
	address  byte
	started  bool
	halted   bool
	writes   [][]byte
	regs     []uint8
	reply    []byte
	startErr error
}

func (d *fakeDriver) Start() error {
	d.started = true
	return d.startErr
}

func (d *fakeDriver) Halt() error {
	d.halted = true
	return nil
}

func (d *fakeDriver) Write(data []byte) error {
	d.writes = append(d.writes, append([]byte(nil), data...))
	return nil
}

func (d *fakeDriver) ReadBlockData(reg uint8, data []byte) error {
	d.regs = append(d.regs, reg)
	copy(data, d.reply)
	return nil
}

type fakeAdaptor struct {
	connects  int
	finalizes int
	drivers   []*fakeDriver
	startErr  error
}

func (a *fakeAdaptor) provider(opts ...GobotProviderOpt) *GobotProvider {
	factory := func(bus int, address byte) GobotDriver {
		d := &fakeDriver{bus: bus, address: address, reply: []byte{0x0C, 0x80}, startErr: a.startErr}
		a.drivers = append(a.drivers, d)
		return d
	}
	opts = append([]GobotProviderOpt{WithGobotDriver(
		func() error { a.connects++; return nil },
		func() error { a.finalizes++; return nil },
		factory,
	)}, opts...)
	return NewNanoPiProvider(opts...)
}

func TestGobotProvider_Controllers(t *testing.T) {
	a := &fakeAdaptor{}
	ids, err := a.provider().Controllers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []tempmon.ControllerID{"2"}, ids)

	ids, err = a.provider(WithBuses(0, 1)).Controllers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []tempmon.ControllerID{"0", "1"}, ids)
}

func TestGobotProvider_Sensor(t *testing.T) {
	a := &fakeAdaptor{}
	p := a.provider()
	ctx := context.Background()

	handle, err := p.Open(ctx, "2", 0x48, tempmon.BusSpeedFast)
	require.NoError(t, err)
	require.Len(t, a.drivers, 1)
	d := a.drivers[0]
	assert.Equal(t, 2, d.bus)
	assert.Equal(t, byte(0x48), d.address)
	assert.True(t, d.started)

	sensor := environment.NewADT7410(handle)
	require.NoError(t, sensor.WriteConfig(ctx))
	temp, err := sensor.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, temp)
	assert.Equal(t, [][]byte{{0x03, 0x80}}, d.writes)
	assert.Equal(t, []uint8{0x00}, d.regs)

	require.NoError(t, sensor.Release())
	assert.True(t, d.halted)
	assert.Equal(t, 1, a.connects)
	assert.Equal(t, 1, a.finalizes)
}

func TestGobotProvider_SharedAdaptor(t *testing.T) {
	a := &fakeAdaptor{}
	p := a.provider()
	ctx := context.Background()

	first, err := p.Open(ctx, "2", 0x48, tempmon.BusSpeedFast)
	require.NoError(t, err)
	_, err = p.Open(ctx, "2", 0x48, tempmon.BusSpeedFast)
	assert.ErrorIs(t, err, tempmon.ErrAddressInUse)
	second, err := p.Open(ctx, "2", 0x49, tempmon.BusSpeedFast)
	require.NoError(t, err)
	assert.Equal(t, 1, a.connects)

	require.NoError(t, first.Close())
	// closing twice must not finalize the adaptor under the second handle
	require.NoError(t, first.Close())
	assert.Equal(t, 0, a.finalizes)
	require.NoError(t, second.Close())
	assert.Equal(t, 1, a.finalizes)
}

func TestGobotProvider_OpenErrors(t *testing.T) {
	a := &fakeAdaptor{}
	_, err := a.provider().Open(context.Background(), "i2c-2", 0x48, tempmon.BusSpeedFast)
	assert.ErrorContains(t, err, "invalid gobot bus number")

	a = &fakeAdaptor{startErr: errors.New("no such device")}
	p := a.provider()
	_, err = p.Open(context.Background(), "2", 0x48, tempmon.BusSpeedFast)
	assert.ErrorContains(t, err, "no such device")
	assert.Equal(t, 1, a.finalizes)
	// claim was released together with the adaptor
	a.startErr = nil
	_, err = p.Open(context.Background(), "2", 0x48, tempmon.BusSpeedFast)
	assert.NotErrorIs(t, err, tempmon.ErrAddressInUse)
}

func TestGobotHandle_LongRegister(t *testing.T) {
	a := &fakeAdaptor{}
	handle, err := a.provider().Open(context.Background(), "2", 0x48, tempmon.BusSpeedFast)
	require.NoError(t, err)
	err = handle.WriteRead(context.Background(), []byte{0x00, 0x01}, make([]byte, 2))
	assert.ErrorContains(t, err, "single register byte")
}
