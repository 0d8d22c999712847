package environment

import (
	"context"
)

// TemperatureBehaviorFunc defines the function signature for temperature behavior.
// It returns the temperature in Celsius or an error.
type TemperatureBehaviorFunc func(ctx context.Context) (float64, error)

// ConfigBehaviorFunc defines the function signature for the configuration write behavior.
type ConfigBehaviorFunc func(ctx context.Context) error

// MockTemperatureSensor is a hardware-free stand-in for ADT7410 driven by behavior functions.
// It exposes the same WriteConfig/ReadTemperature/Release surface so it can be handed to the sampler.
type MockTemperatureSensor struct {
	configBehavior ConfigBehaviorFunc
	tempBehavior   TemperatureBehaviorFunc
	released       bool
}

// NewMockTemperatureSensor creates a new mock sensor. A nil config behavior always succeeds.
//
// Example usage:
//
//	sensor := NewMockTemperatureSensor(nil, func(ctx context.Context) (float64, error) { return 25.0, nil })
func NewMockTemperatureSensor(configBehavior ConfigBehaviorFunc, tempBehavior TemperatureBehaviorFunc) *MockTemperatureSensor {
	if configBehavior == nil {
		configBehavior = func(ctx context.Context) error { return nil }
	}
	return &MockTemperatureSensor{configBehavior: configBehavior, tempBehavior: tempBehavior}
}

// WriteConfig calls the config behavior function.
func (m *MockTemperatureSensor) WriteConfig(ctx context.Context) error {
	return m.configBehavior(ctx)
}

// ReadTemperature returns the temperature by calling the behavior function.
func (m *MockTemperatureSensor) ReadTemperature(ctx context.Context) (float64, error) {
	return m.tempBehavior(ctx)
}

// Release marks the mock as released.
func (m *MockTemperatureSensor) Release() error {
	m.released = true
	return nil
}

// Released reports whether Release has been called.
func (m *MockTemperatureSensor) Released() bool {
	return m.released
}

// NewMockADT7410 returns a mock that decodes raw register samples the way the real device does.
func NewMockADT7410(samples func(ctx context.Context) (RawSample, error)) *MockTemperatureSensor {
	return NewMockTemperatureSensor(nil, func(ctx context.Context) (float64, error) {
		raw, err := samples(ctx)
		if err != nil {
			return 0, err
		}
		return DecodeTemperature(raw), nil
	})
}
