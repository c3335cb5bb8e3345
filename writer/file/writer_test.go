package file_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vpbank/beanpoller/models"
	"github.com/vpbank/beanpoller/writer/file"
)

func TestWriterWritesOneLinePerResult(t *testing.T) {
	var buf bytes.Buffer
	w := file.New(file.Config{Out: &buf}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	server := models.Server{Host: "h", Port: 161, Alias: "switch-a"}
	query := models.Query{Pattern: "1.3.6.1", Tags: map[string]string{"env": "prod"}}
	results := []models.Result{
		{Attribute: "a", Value: int64(1), Timestamp: time.Now()},
		{Attribute: "b", Value: "two", Timestamp: time.Now()},
	}

	if err := w.Write(context.Background(), server, query, results); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}

	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["server"] != "switch-a" || rec["attribute"] != "a" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestWriterWriteBeforeStartFails(t *testing.T) {
	w := file.New(file.Config{}, nil)
	err := w.Write(context.Background(), models.Server{}, models.Query{}, []models.Result{{Attribute: "x"}})
	if err == nil {
		t.Fatal("expected Write before Start to fail")
	}
}

func TestWriterEmptyResultsIsNoop(t *testing.T) {
	var buf bytes.Buffer
	w := file.New(file.Config{Out: &buf}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Write(context.Background(), models.Server{}, models.Query{}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty results, got %q", buf.String())
	}
}
