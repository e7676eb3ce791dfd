//go:build linux

package i2c

import (
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ioctlRDWR = 0x0707 // I2C_RDWR
	flagRead  = 0x0001 // I2C_M_RD
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrIoctlData mirrors struct i2c_rdwr_ioctl_data.
type rdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an open /dev/i2c-N character device. Transfers are serialised.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens the bus at path, for example /dev/i2c-1.
func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	return &Bus{f: f, path: path}, nil
}

// Dev returns a handle for the device at addr.
func (b *Bus) Dev(addr uint16) *Dev {
	return &Dev{bus: b, addr: addr}
}

// Close releases the bus. Further calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.f == nil {
		return nil
	}

	err := b.f.Close()
	b.f = nil

	return err
}

func (b *Bus) transfer(addr uint16, w, r []byte) error {
	if err := checkAddr(addr); err != nil {
		return err
	}

	msgs := make([]i2cMsg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}

	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}

	if len(msgs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.f == nil {
		return ErrClosed
	}

	data := rdwrIoctlData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), ioctlRDWR, uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return errno
	}

	return nil
}
