//go:build linux

package i2c

import (
	"os"
	"strings"
	"testing"
)

func openNull(t *testing.T) *Bus {
	t.Helper()

	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open /dev/null: %v", err)
	}

	b := &Bus{f: f, path: "/dev/null"}
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func TestTransferRejectsInvalidAddress(t *testing.T) {
	t.Parallel()

	b := openNull(t)

	for _, addr := range []uint16{0, 0x80} {
		err := b.Dev(addr).WriteReg(0xF4, 0x00)
		if err == nil || !strings.Contains(err.Error(), "invalid 7-bit address") {
			t.Errorf("WriteReg at %#x error = %v, want invalid address", addr, err)
		}
	}
}

func TestEmptyTransferIsNoop(t *testing.T) {
	t.Parallel()

	b := openNull(t)

	if err := b.transfer(0x77, nil, nil); err != nil {
		t.Errorf("transfer(nil, nil) = %v, want nil", err)
	}
}

func TestClosedBus(t *testing.T) {
	t.Parallel()

	b := openNull(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	if _, err := b.Dev(0x77).ReadRegU8(0xD0); err != ErrClosed {
		t.Errorf("ReadRegU8 after Close = %v, want ErrClosed", err)
	}
}
