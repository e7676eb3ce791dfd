//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Pin is an output line held for the lifetime of the process.
type Pin struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// chipCandidates lists chips to probe, the given one first.
func chipCandidates(preferred string) []string {
	if preferred != "" {
		return []string{preferred}
	}

	out := []string{"/dev/gpiochip0", "/dev/gpiochip4"}

	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "gpiochip") {
			continue
		}

		path := filepath.Join("/dev", e.Name())
		if path != out[0] && path != out[1] {
			out = append(out, path)
		}
	}

	return out
}

// OpenOutput requests pin as an output driven low. An empty chip probes every
// /dev/gpiochip* for a line named GPIO<pin>.
func OpenOutput(chip string, pin int, consumer string) (*Pin, error) {
	if pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}

	name := LineName(pin)

	for _, path := range chipCandidates(chip) {
		c, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}

		offset, err := c.FindLine(name)
		if err != nil {
			_ = c.Close()
			continue
		}

		line, err := c.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("gpio: request %s on %s: %w", name, path, err)
		}

		return &Pin{chip: c, line: line}, nil
	}

	return nil, fmt.Errorf("gpio: line %q not found", name)
}

// Set drives the line high or low.
func (p *Pin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line == nil {
		return ErrClosed
	}

	v := 0
	if high {
		v = 1
	}

	return p.line.SetValue(v)
}

// Close drives the line low and releases it. Further calls are no-ops.
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line == nil {
		return nil
	}

	_ = p.line.SetValue(0)
	err := p.line.Close()
	p.line = nil

	if p.chip != nil {
		_ = p.chip.Close()
		p.chip = nil
	}

	return err
}
