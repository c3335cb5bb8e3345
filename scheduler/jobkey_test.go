package scheduler_test

import (
	"strings"
	"testing"

	"github.com/vpbank/beanpoller/scheduler"
)

func TestNewJobKeyPrefixedWithServerKey(t *testing.T) {
	key := scheduler.NewJobKey("10.0.0.1:1161")
	if !strings.HasPrefix(string(key), "10.0.0.1:1161-") {
		t.Fatalf("JobKey %q does not start with server key prefix", key)
	}
}

func TestNewJobKeyDistinctForSameServer(t *testing.T) {
	seen := make(map[scheduler.JobKey]struct{})
	for i := 0; i < 100; i++ {
		k := scheduler.NewJobKey("host:161")
		if _, ok := seen[k]; ok {
			t.Fatalf("duplicate JobKey generated: %s", k)
		}
		seen[k] = struct{}{}
	}
}
