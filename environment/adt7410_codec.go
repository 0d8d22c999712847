package environment

import "math"

const (
	ADT7410DefaultAddress = 0x48

	adt7410TempRegister   = 0x00
	adt7410ConfigRegister = 0x03

	// configuration register bit 7 selects the 16-bit conversion result
	adt7410Mode16Bit = 0x80
	adt7410Mode13Bit = 0x00

	// low three bits of the 13-bit result carry the TCRIT/THIGH/TLOW flags
	adt7410FlagMask = 0xFFF8
)

// Resolution selects the conversion result layout of the temperature register.
type Resolution int

const (
	Resolution16Bit Resolution = iota
	Resolution13Bit
)

func (r Resolution) String() string {
	if r == Resolution13Bit {
		return "13-bit"
	}
	return "16-bit"
}

// RawSample is the content of the two temperature registers, MSB first.
type RawSample [2]byte

// EncodeConfig returns the configuration write selecting 16-bit resolution.
func EncodeConfig() []byte {
	return EncodeConfigFor(Resolution16Bit)
}

// EncodeConfigFor returns the configuration register write for the given resolution.
func EncodeConfigFor(res Resolution) []byte {
	if res == Resolution13Bit {
		return []byte{adt7410ConfigRegister, adt7410Mode13Bit}
	}
	return []byte{adt7410ConfigRegister, adt7410Mode16Bit}
}

// DecodeTemperature converts a 16-bit mode sample to degrees Celsius
// (1 LSB = 1/128 °C), rounded half to even to 2 decimal places.
func DecodeTemperature(raw RawSample) float64 {
	combined := float64(raw[0])*256 + float64(raw[1])
	var temp float64
	if raw[0]&0x80 == 0 {
		temp = combined / 128.0
	} else {
		temp = (combined - 65536.0) / 128.0
	}
	return roundCentis(temp)
}

// DecodeTemperature13 converts a 13-bit mode sample. The flag bits are cleared
// before scaling so the result is a multiple of 1/16 °C.
func DecodeTemperature13(raw RawSample) float64 {
	masked := (uint16(raw[0])<<8 | uint16(raw[1])) & adt7410FlagMask
	return DecodeTemperature(RawSample{byte(masked >> 8), byte(masked)})
}

func decode(res Resolution, raw RawSample) float64 {
	if res == Resolution13Bit {
		return DecodeTemperature13(raw)
	}
	return DecodeTemperature(raw)
}

// every sample is k/128 so v*100 is exact and ties are real ties
func roundCentis(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
