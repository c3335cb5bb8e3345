package mbean

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/beanpoller/models"
)

// SNMPClient is the production Client implementation. It obtains a pooled
// session per Server and performs an SNMP Get for every attribute named in
// Query.Attributes, each resolved against Query.Pattern: Pattern is the base
// OID and each attribute is either a full OID or a ".suffix" appended to it.
type SNMPClient struct {
	pool   *ConnectionPool
	logger *slog.Logger
}

// NewSNMPClient creates a Client backed by pool.
func NewSNMPClient(pool *ConnectionPool, logger *slog.Logger) *SNMPClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SNMPClient{pool: pool, logger: logger}
}

// Query implements Client.
func (c *SNMPClient) Query(ctx context.Context, server models.Server, query models.Query) ([]models.Result, error) {
	conn, err := c.pool.Get(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("mbean: acquire session %s: %w", server.DisplayName(), err)
	}

	oids := resolveOIDs(query)
	if len(oids) == 0 {
		c.pool.Put(server.Key(), conn)
		return nil, nil
	}

	maxOids := int(conn.MaxOids)
	if maxOids <= 0 {
		maxOids = 60
	}

	now := time.Now()
	results := make([]models.Result, 0, len(oids))
	for i := 0; i < len(oids); i += maxOids {
		end := i + maxOids
		if end > len(oids) {
			end = len(oids)
		}
		pkt, err := conn.Get(oids[i:end])
		if err != nil {
			c.pool.Discard(server.Key(), conn)
			return results, fmt.Errorf("mbean: get %s %s: %w", server.DisplayName(), query.Pattern, err)
		}
		for _, pdu := range pkt.Variables {
			results = append(results, models.Result{
				Server:     server,
				Query:      query,
				ObjectName: query.Pattern,
				Attribute:  pdu.Name,
				Value:      pdu.Value,
				Timestamp:  now,
			})
		}
	}

	c.pool.Put(server.Key(), conn)
	c.logger.Debug("mbean: query completed",
		"server", server.DisplayName(),
		"pattern", query.Pattern,
		"result_count", len(results),
	)
	return results, nil
}

// resolveOIDs turns Query.Attributes into fully-qualified OIDs relative to
// Query.Pattern. An attribute that already starts with "." is treated as
// absolute; anything else is appended to Pattern.
func resolveOIDs(query models.Query) []string {
	if len(query.Attributes) == 0 {
		if query.Pattern == "" {
			return nil
		}
		oid := query.Pattern
		if !strings.HasSuffix(oid, ".0") {
			oid += ".0"
		}
		return []string{oid}
	}

	oids := make([]string, 0, len(query.Attributes))
	for _, attr := range query.Attributes {
		var oid string
		switch {
		case strings.HasPrefix(attr, "."):
			oid = attr
		case query.Pattern == "":
			oid = attr
		default:
			oid = strings.TrimSuffix(query.Pattern, ".") + "." + attr
		}
		if !strings.HasSuffix(oid, ".0") {
			oid += ".0"
		}
		oids = append(oids, oid)
	}
	return oids
}

var _ Client = (*SNMPClient)(nil)
