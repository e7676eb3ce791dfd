// Package gpio drives a single digital output line through the Linux GPIO
// character device.
package gpio

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a closed Pin is written.
var ErrClosed = errors.New("gpio: pin closed")

// LineName is the name the kernel gives BCM pin n on a Raspberry Pi header.
func LineName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}
