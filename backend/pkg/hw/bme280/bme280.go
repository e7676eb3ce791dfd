// Package bme280 reads compensated temperature, pressure and humidity from a
// Bosch BME280 over I2C.
package bme280

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var sleep = time.Sleep

const (
	// AddressPrimary is the address with SDO tied high (most breakout boards).
	AddressPrimary = 0x77
	// AddressSecondary is the address with SDO tied low.
	AddressSecondary = 0x76

	regID     = 0xD0
	chipID    = 0x60
	regReset  = 0xE0
	resetCmd  = 0xB6
	regStatus = 0xF3

	regCalibTP = 0x88
	calibTPLen = 24
	regCalibH1 = 0xA1
	regCalibH2 = 0xE1
	calibH2Len = 7

	regCtrlHum  = 0xF2
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regData     = 0xF7
	dataLen     = 8

	statusImUpdate = 0x01
)

// Registers is the register access the driver needs from a bus device.
type Registers interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// Reading is one compensated sample.
type Reading struct {
	TemperatureC float64
	PressurePa   float64
	Humidity     float64 // %RH, clamped to [0, 100]
}

// Fahrenheit returns the temperature in degrees Fahrenheit.
func (r Reading) Fahrenheit() float64 {
	return r.TemperatureC*9/5 + 32
}

type calibration struct {
	t1 uint16
	t2 int16
	t3 int16

	p1 uint16
	p2 int16
	p3 int16
	p4 int16
	p5 int16
	p6 int16
	p7 int16
	p8 int16
	p9 int16

	h1 uint8
	h2 int16
	h3 uint8
	h4 int16
	h5 int16
	h6 int8
}

// Device is an initialised BME280 running in normal mode.
type Device struct {
	regs Registers
	cal  calibration
}

// New checks the chip id, resets the sensor, loads its calibration and starts
// continuous measurement.
func New(regs Registers) (*Device, error) {
	if regs == nil {
		return nil, errors.New("bme280: registers are nil")
	}

	id, err := regs.ReadRegU8(regID)
	if err != nil {
		return nil, fmt.Errorf("bme280: read chip id: %w", err)
	}

	if id != chipID {
		return nil, fmt.Errorf("bme280: chip id=0x%02X want 0x%02X", id, chipID)
	}

	if err := regs.WriteReg(regReset, resetCmd); err != nil {
		return nil, fmt.Errorf("bme280: reset: %w", err)
	}

	d := &Device{regs: regs}

	// NVM is copied into the image registers after reset.
	if err := d.waitNVM(); err != nil {
		return nil, err
	}

	if err := d.readCalibration(); err != nil {
		return nil, err
	}

	// Humidity oversampling only takes effect after a ctrl_meas write.
	for _, w := range []struct{ reg, val byte }{
		{regCtrlHum, 0x01},              // osrs_h x1
		{regConfig, 0xA0},               // t_sb 1000ms, filter off
		{regCtrlMeas, 1<<5 | 1<<2 | 3}, // osrs_t x1, osrs_p x1, normal mode
	} {
		if err := regs.WriteReg(w.reg, w.val); err != nil {
			return nil, fmt.Errorf("bme280: write 0x%02X: %w", w.reg, err)
		}
	}

	return d, nil
}

func (d *Device) waitNVM() error {
	for range 10 {
		sleep(2 * time.Millisecond)

		st, err := d.regs.ReadRegU8(regStatus)
		if err != nil {
			return fmt.Errorf("bme280: read status: %w", err)
		}

		if st&statusImUpdate == 0 {
			return nil
		}
	}

	return errors.New("bme280: calibration copy did not finish")
}

func (d *Device) readCalibration() error {
	tp := make([]byte, calibTPLen)
	if err := d.regs.ReadReg(regCalibTP, tp); err != nil {
		return fmt.Errorf("bme280: read calibration: %w", err)
	}

	h1, err := d.regs.ReadRegU8(regCalibH1)
	if err != nil {
		return fmt.Errorf("bme280: read calibration: %w", err)
	}

	h := make([]byte, calibH2Len)
	if err := d.regs.ReadReg(regCalibH2, h); err != nil {
		return fmt.Errorf("bme280: read calibration: %w", err)
	}

	le := binary.LittleEndian
	c := calibration{
		t1: le.Uint16(tp[0:2]),
		t2: int16(le.Uint16(tp[2:4])),
		t3: int16(le.Uint16(tp[4:6])),
		p1: le.Uint16(tp[6:8]),
		p2: int16(le.Uint16(tp[8:10])),
		p3: int16(le.Uint16(tp[10:12])),
		p4: int16(le.Uint16(tp[12:14])),
		p5: int16(le.Uint16(tp[14:16])),
		p6: int16(le.Uint16(tp[16:18])),
		p7: int16(le.Uint16(tp[18:20])),
		p8: int16(le.Uint16(tp[20:22])),
		p9: int16(le.Uint16(tp[22:24])),
		h1: h1,
		h2: int16(le.Uint16(h[0:2])),
		h3: h[2],
		h4: int16(int8(h[3]))<<4 | int16(h[4]&0x0F),
		h5: int16(int8(h[5]))<<4 | int16(h[4]>>4),
		h6: int8(h[6]),
	}

	if c.t1 == 0 || c.p1 == 0 {
		return fmt.Errorf("bme280: calibration invalid (T1=%d P1=%d)", c.t1, c.p1)
	}

	d.cal = c

	return nil
}

// Read returns the latest compensated sample.
func (d *Device) Read() (Reading, error) {
	buf := make([]byte, dataLen)
	if err := d.regs.ReadReg(regData, buf); err != nil {
		return Reading{}, fmt.Errorf("bme280: read data: %w", err)
	}

	adcP := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	adcT := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4
	adcH := int32(buf[6])<<8 | int32(buf[7])

	// 0x80000 is what the chip returns for a skipped measurement.
	if adcT == 0x80000 {
		return Reading{}, errors.New("bme280: temperature measurement skipped")
	}

	tFine, t := d.cal.temperature(adcT)

	return Reading{
		TemperatureC: t,
		PressurePa:   d.cal.pressure(adcP, tFine),
		Humidity:     d.cal.humidity(adcH, tFine),
	}, nil
}

func (c calibration) temperature(adcT int32) (int32, float64) {
	var1 := (float64(adcT)/16384.0 - float64(c.t1)/1024.0) * float64(c.t2)
	var2 := float64(adcT)/131072.0 - float64(c.t1)/8192.0
	var2 = var2 * var2 * float64(c.t3)

	return int32(var1 + var2), (var1 + var2) / 5120.0
}

func (c calibration) pressure(adcP int32, tFine int32) float64 {
	var1 := float64(tFine)/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.p6) / 32768.0
	var2 += var1 * float64(c.p5) * 2.0
	var2 = var2/4.0 + float64(c.p4)*65536.0
	var1 = (float64(c.p3)*var1*var1/524288.0 + float64(c.p2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.p1)

	if var1 == 0 {
		return 0
	}

	p := 1048576.0 - float64(adcP)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.p9) * p * p / 2147483648.0
	var2 = p * float64(c.p8) / 32768.0

	return p + (var1+var2+float64(c.p7))/16.0
}

func (c calibration) humidity(adcH int32, tFine int32) float64 {
	h := float64(tFine) - 76800.0
	h = (float64(adcH) - (float64(c.h4)*64.0 + float64(c.h5)/16384.0*h)) *
		(float64(c.h2) / 65536.0 * (1.0 + float64(c.h6)/67108864.0*h*(1.0+float64(c.h3)/67108864.0*h)))
	h *= 1.0 - float64(c.h1)*h/524288.0

	return min(max(h, 0), 100)
}
