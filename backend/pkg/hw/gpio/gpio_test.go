package gpio

import "testing"

func TestLineName(t *testing.T) {
	t.Parallel()

	if got := LineName(21); got != "GPIO21" {
		t.Errorf("LineName(21) = %q, want GPIO21", got)
	}
}

func TestOpenOutputRejectsNegativePin(t *testing.T) {
	t.Parallel()

	if _, err := OpenOutput("", -1, "test"); err == nil {
		t.Error("OpenOutput(-1) expected error")
	}
}

func TestClosedPin(t *testing.T) {
	t.Parallel()

	var p Pin

	if err := p.Close(); err != nil {
		t.Errorf("Close() on unopened pin = %v, want nil", err)
	}

	if err := p.Set(true); err != ErrClosed {
		t.Errorf("Set() on closed pin = %v, want ErrClosed", err)
	}
}
