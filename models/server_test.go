package models_test

import (
	"context"
	"testing"

	"github.com/vpbank/beanpoller/models"
)

func TestServerDisplayNameFallsBackToHostPort(t *testing.T) {
	s := models.Server{Host: "10.0.0.1", Port: 161}
	if got := s.DisplayName(); got != "10.0.0.1:161" {
		t.Fatalf("DisplayName() = %q, want %q", got, "10.0.0.1:161")
	}

	s.Alias = "core-switch"
	if got := s.DisplayName(); got != "core-switch" {
		t.Fatalf("DisplayName() = %q, want %q", got, "core-switch")
	}
}

func TestServerKeyIgnoresAliasAndQueries(t *testing.T) {
	a := models.Server{Host: "10.0.0.1", Port: 161, Alias: "one"}
	b := models.Server{Host: "10.0.0.1", Port: 161, Alias: "two", Queries: []models.Query{{Pattern: "x"}}}
	if a.Key() != b.Key() {
		t.Fatalf("Key() differs for servers with the same host:port: %q vs %q", a.Key(), b.Key())
	}
}

func TestAllWritersUnionsServerAndQueryWriters(t *testing.T) {
	serverWriter := fakeWriter("server")
	queryWriter := fakeWriter("query")

	server := models.Server{Writers: []models.OutputWriter{serverWriter}}
	query := models.Query{Writers: []models.OutputWriter{queryWriter}}

	got := models.AllWriters(server, query)
	if len(got) != 2 || got[0] != serverWriter || got[1] != queryWriter {
		t.Fatalf("AllWriters() = %v, want [server, query] in that order", got)
	}
}

func TestAllWritersHandlesEitherSideEmpty(t *testing.T) {
	w := fakeWriter("only")
	if got := models.AllWriters(models.Server{}, models.Query{Writers: []models.OutputWriter{w}}); len(got) != 1 {
		t.Fatalf("AllWriters() = %v, want 1 entry", got)
	}
	if got := models.AllWriters(models.Server{Writers: []models.OutputWriter{w}}, models.Query{}); len(got) != 1 {
		t.Fatalf("AllWriters() = %v, want 1 entry", got)
	}
}

type fakeWriter string

func (fakeWriter) Start(context.Context) error                                     { return nil }
func (fakeWriter) ValidateSetup(models.Server, models.Query) error                  { return nil }
func (fakeWriter) Write(context.Context, models.Server, models.Query, []models.Result) error {
	return nil
}
func (fakeWriter) Close() error { return nil }

var _ models.OutputWriter = fakeWriter("")
