// Package scheduler fires a Server Job at the times implied by each Server's
// Trigger. It owns Trigger construction, the spread algorithm, and JobKey
// identity, and dispatches ticks into an injected Dispatcher, decoupling the
// scheduler from how queries actually execute.
package scheduler

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// JobKey uniquely identifies one scheduled job: "host:port-<nonce>-<random>".
// The nonce is a per-process atomic counter, so two servers sharing a
// Host:Port across rapid or concurrent reloads still get pairwise distinct
// keys within one process run; the random suffix is appended on top of it.
type JobKey string

var jobNonce atomic.Uint64

// NewJobKey allocates a fresh JobKey for serverKey (typically
// models.Server.Key()).
func NewJobKey(serverKey string) JobKey {
	nonce := jobNonce.Add(1)
	return JobKey(fmt.Sprintf("%s-%d-%s", serverKey, nonce, uuid.NewString()))
}
