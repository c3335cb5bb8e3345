// Package mbean implements the management-protocol client consumed by the
// executor's query tasks. The core only reaches this client through the
// Client interface below; this package supplies the concrete default
// implementation, built on gosnmp (see pool.go, session.go for the
// pooling/dialing logic).
package mbean

import (
	"context"

	"github.com/vpbank/beanpoller/models"
)

// Client performs one Query against one Server and returns the resulting
// Result batch. Implementations must be safe for concurrent use — the
// executor runs many query tasks against the same Client concurrently,
// including several for the same Server.
type Client interface {
	Query(ctx context.Context, server models.Server, query models.Query) ([]models.Result, error)
}
