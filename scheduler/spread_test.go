package scheduler_test

import (
	"testing"
	"time"

	"github.com/vpbank/beanpoller/scheduler"
)

func TestSpreadWithinBounds(t *testing.T) {
	period := 30 * time.Second
	for i := 0; i < 200; i++ {
		d := scheduler.Spread(period)
		if d < 0 || d >= period {
			t.Fatalf("Spread(%s) = %s, want in [0, %s)", period, d, period)
		}
	}
}

func TestSpreadZeroPeriod(t *testing.T) {
	if d := scheduler.Spread(0); d != 0 {
		t.Fatalf("Spread(0) = %s, want 0", d)
	}
	if d := scheduler.Spread(-time.Second); d != 0 {
		t.Fatalf("Spread(negative) = %s, want 0", d)
	}
}
