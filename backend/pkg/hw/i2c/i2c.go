// Package i2c talks to devices on a Linux /dev/i2c-N bus.
package i2c

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for transfers on a closed bus.
	ErrClosed = errors.New("i2c: bus closed")
	// ErrUnsupported is returned on platforms without /dev/i2c-N.
	ErrUnsupported = errors.New("i2c: unsupported OS (need linux)")
)

func checkAddr(addr uint16) error {
	if addr == 0 || addr > 0x7F {
		return fmt.Errorf("i2c: invalid 7-bit address %#x", addr)
	}

	return nil
}

// Dev is a device at a 7-bit address on a Bus.
type Dev struct {
	bus  *Bus
	addr uint16
}

// Addr returns the device address.
func (d *Dev) Addr() uint16 { return d.addr }

// ReadReg reads len(dst) bytes starting at register reg using a repeated start.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	return d.bus.transfer(d.addr, []byte{reg}, dst)
}

// ReadRegU8 reads a single register.
func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}

	return b[0], nil
}

// WriteReg writes value to register reg.
func (d *Dev) WriteReg(reg, value byte) error {
	return d.bus.transfer(d.addr, []byte{reg, value}, nil)
}
