package sio

// DecodeTemperature decodes a Nuvoton temperature pair: the integer byte
// in degrees, plus half a degree when the fraction byte's top bit is set.
func DecodeTemperature(integer, fraction byte) float64 {
	v := float64(integer)
	if fraction&0x80 != 0 {
		v += 0.5
	}
	return v
}

// DecodeVoltage decodes a Nuvoton 12-bit ADC reading (1 mV per LSB) and
// scales it by the rail's divider multiplier.
func DecodeVoltage(hi, lo byte, multiplier float64) float64 {
	raw := uint16(hi)<<4 | uint16(lo)>>4
	return 0.001 * float64(raw) * multiplier
}

// DecodeFanRPM decodes a Nuvoton tachometer pair, which reports RPM
// directly.
func DecodeFanRPM(hi, lo byte) int {
	return int(hi)<<8 | int(lo)
}

// Limits bounds what a decoded value may be before it is believed.
type Limits struct {
	TempMin, TempMax float64 // exclusive
	FanRPMMax        int     // exclusive
	VoltageHeadroom  float64 // readings above Nominal*VoltageHeadroom are rejected
}

// DefaultLimits rejects temperatures at or below 0 °C or at or above
// 115 °C.
func DefaultLimits() Limits {
	return Limits{TempMin: 0, TempMax: 115, FanRPMMax: 20000, VoltageHeadroom: 1.5}
}

func (l Limits) checkTemperature(v float64) error {
	if v <= l.TempMin || v >= l.TempMax {
		return ErrImplausibleReading
	}
	return nil
}

func (l Limits) checkVoltage(v, nominal float64) error {
	if v <= 0 || (nominal > 0 && v > nominal*l.VoltageHeadroom) {
		return ErrImplausibleReading
	}
	return nil
}

func (l Limits) checkFanRPM(rpm int) error {
	if rpm < 0 || rpm >= l.FanRPMMax {
		return ErrImplausibleReading
	}
	return nil
}
