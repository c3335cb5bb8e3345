package lifecycle_test

import (
	"testing"

	"github.com/vpbank/beanpoller/lifecycle"
)

func TestStateString(t *testing.T) {
	cases := map[lifecycle.State]string{
		lifecycle.Stopped:  "stopped",
		lifecycle.Starting: "starting",
		lifecycle.Running:  "running",
		lifecycle.Stopping: "stopping",
		lifecycle.State(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
