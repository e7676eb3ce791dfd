//go:build !linux

package i2c

type Bus struct{}

func Open(path string) (*Bus, error) { return nil, ErrUnsupported }

func (b *Bus) Dev(addr uint16) *Dev { return &Dev{bus: b, addr: addr} }

func (b *Bus) Close() error { return nil }

func (b *Bus) transfer(addr uint16, w, r []byte) error { return ErrUnsupported }
