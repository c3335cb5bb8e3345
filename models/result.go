package models

import "time"

// Result is a single resolved attribute value produced by the
// management-protocol client for one Query against one Server.
type Result struct {
	// Server and Query identify the origin of this sample. Query is stored
	// by value so a Result remains valid after a reload replaces the live
	// configuration.
	Server Server
	Query  Query

	// ObjectName is the object the value was read from. The gosnmp-backed
	// client reports Query.Pattern here unchanged.
	ObjectName string

	// Attribute is the attribute name within ObjectName. The gosnmp-backed
	// client reports the full OID of the returned variable here.
	Attribute string

	// Value is the raw value returned by the protocol client, passed through
	// as decoded (for the gosnmp-backed client: e.g. int, uint, uint32,
	// uint64, string, or []byte). The core never transforms this.
	Value interface{}

	// Timestamp is when the protocol client observed this value.
	Timestamp time.Time
}
