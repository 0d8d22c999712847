package environment

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestADT7410_EncodeConfig(t *testing.T) {
	assert.Equal(t, []byte{0x03, 0x80}, EncodeConfig())
	// callers may scribble over the returned slice
	first := EncodeConfig()
	first[1] = 0xFF
	assert.Equal(t, []byte{0x03, 0x80}, EncodeConfig())
	assert.Equal(t, []byte{0x03, 0x00}, EncodeConfigFor(Resolution13Bit))
}

func TestADT7410_DecodeTemperature(t *testing.T) {
	tests := []struct {
		given    RawSample
		expected float64
	}{
		{RawSample{0x00, 0x00}, 0.0},
		{RawSample{0x0C, 0x80}, 25.0},
		{RawSample{0x19, 0x00}, 50.0},
		{RawSample{0x7F, 0xFF}, 255.99},
		{RawSample{0x00, 0x01}, 0.01},
		{RawSample{0xFF, 0xFF}, -0.01},
		{RawSample{0x80, 0x00}, -256.0},
		{RawSample{0xC9, 0x00}, -110.0},
		{RawSample{0xE4, 0x80}, -55.0},
		{RawSample{0x40, 0x00}, 128.0},
		// 0.125 and 0.375 are ties; half to even
		{RawSample{0x00, 0x10}, 0.12},
		{RawSample{0x00, 0x30}, 0.38},
		{RawSample{0xFF, 0xF0}, -0.12},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given[:]), func(t *testing.T) {
			assert.Equal(t, test.expected, DecodeTemperature(test.given))
		})
	}
}

func TestADT7410_DecodeTemperature_AllSamples(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		raw := RawSample{byte(v >> 8), byte(v)}
		got := DecodeTemperature(raw)
		combined := float64(raw[0])*256 + float64(raw[1])
		var want float64
		if raw[0]&0x80 == 0 {
			want = math.RoundToEven(combined/128.0*100) / 100
		} else {
			want = math.RoundToEven((combined-65536.0)/128.0*100) / 100
			if got >= 0 {
				t.Fatalf("%04x: expected negative value, got %f", v, got)
			}
		}
		if got != want {
			t.Fatalf("%04x: expected %f, got %f", v, want, got)
		}
		// both branches agree with a signed 16-bit reading
		if signed := math.RoundToEven(float64(int16(v))/128*100) / 100; got != signed {
			t.Fatalf("%04x: expected %f as int16, got %f", v, signed, got)
		}
	}
}

func TestADT7410_DecodeTemperature_SignBoundary(t *testing.T) {
	// the container wraps from the most positive to the most negative code
	assert.Equal(t, 255.99, DecodeTemperature(RawSample{0x7F, 0xFF}))
	assert.Equal(t, -256.0, DecodeTemperature(RawSample{0x80, 0x00}))
	// adjacent codes around zero stay one LSB apart
	assert.Equal(t, 0.0, DecodeTemperature(RawSample{0x00, 0x00}))
	assert.Equal(t, -0.01, DecodeTemperature(RawSample{0xFF, 0xFF}))
}

func TestADT7410_DecodeTemperature13(t *testing.T) {
	tests := []struct {
		given    RawSample
		expected float64
	}{
		{RawSample{0x0C, 0x80}, 25.0},
		{RawSample{0x0C, 0x87}, 25.0}, // flag bits ignored
		{RawSample{0x0C, 0x88}, 25.06},
		{RawSample{0xE4, 0x87}, -55.0},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given[:]), func(t *testing.T) {
			assert.Equal(t, test.expected, DecodeTemperature13(test.given))
		})
	}
}
