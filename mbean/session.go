package mbean

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/beanpoller/models"
)

// DialFunc creates and connects a session for a Server. Tests inject a fake
// to avoid real network I/O.
type DialFunc func(server models.Server) (*gosnmp.GoSNMP, error)

// NewSession creates and connects a gosnmp session for the given server. The
// caller is responsible for closing the underlying connection when done.
//
// The agent speaks SNMPv2c by default, authenticating with Server.Username as
// the community string when set (falling back to "public"). Username and
// Password are deliberately generic on models.Server; a different protocol
// client can interpret those two fields however its wire protocol requires.
func NewSession(server models.Server) (*gosnmp.GoSNMP, error) {
	community := server.Username
	if community == "" {
		community = "public"
	}

	g := &gosnmp.GoSNMP{
		Target:    server.Host,
		Port:      uint16(server.Port),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   3 * time.Second,
		Retries:   2,
		MaxOids:   60,
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("mbean: connect %s:%d: %w", server.Host, server.Port, err)
	}
	return g, nil
}
