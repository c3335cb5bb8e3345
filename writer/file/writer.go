package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/vpbank/beanpoller/models"
)

// Config controls Writer behaviour.
type Config struct {
	// FilePath, when non-empty, opens a RotatingFile at this path. When
	// empty, Out is used directly (typically os.Stdout) and rotation is
	// disabled.
	FilePath string

	// MaxBytes / MaxBackups configure rotation when FilePath is set.
	MaxBytes   int64
	MaxBackups int

	// Out is the destination when FilePath is empty. nil defaults to
	// os.Stdout.
	Out io.Writer

	// PrettyPrint emits indented JSON records when true.
	PrettyPrint bool
}

// record is the on-disk/on-wire shape of one line written by Writer.
type record struct {
	Server    string            `json:"server"`
	Pattern   string            `json:"pattern"`
	Attribute string            `json:"attribute"`
	Value     interface{}       `json:"value"`
	Timestamp string            `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Writer implements models.OutputWriter by appending one newline-delimited
// JSON record per Result to a file or arbitrary io.Writer. Safe for
// concurrent Write calls.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	out     io.Writer
	rotator *RotatingFile // non-nil only when cfg.FilePath is set
}

// New constructs a Writer. Resources are not acquired until Start is called.
func New(cfg Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{cfg: cfg, logger: logger}
}

// Start opens the destination file (if FilePath is set) or defaults Out to
// os.Stdout. Relies on the OutputWriter contract's "called once" guarantee:
// calling it again on an already-started Writer would orphan the previous
// rotator's file handle, since Close only ever sees the last one assigned.
func (w *Writer) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cfg.FilePath != "" {
		rf, err := NewRotatingFile(RotateConfig{
			FilePath:   w.cfg.FilePath,
			MaxBytes:   w.cfg.MaxBytes,
			MaxBackups: w.cfg.MaxBackups,
		}, w.logger)
		if err != nil {
			return fmt.Errorf("writer/file: start: %w", err)
		}
		w.rotator = rf
		w.out = rf
		return nil
	}

	if w.cfg.Out != nil {
		w.out = w.cfg.Out
	} else {
		w.out = os.Stdout
	}
	return nil
}

// ValidateSetup checks that the destination is usable. Since Start already
// opens (or defaults) the destination, this only guards against a Writer
// used before Start.
func (w *Writer) ValidateSetup(_ models.Server, _ models.Query) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return fmt.Errorf("writer/file: validate: writer not started")
	}
	return nil
}

// Write serializes each Result as one newline-terminated JSON record.
func (w *Writer) Write(_ context.Context, server models.Server, query models.Query, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return fmt.Errorf("writer/file: write: writer not started")
	}

	for _, r := range results {
		rec := record{
			Server:    server.DisplayName(),
			Pattern:   query.Pattern,
			Attribute: r.Attribute,
			Value:     r.Value,
			Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Tags:      query.Tags,
		}

		var (
			data []byte
			err  error
		)
		if w.cfg.PrettyPrint {
			data, err = json.MarshalIndent(rec, "", "  ")
		} else {
			data, err = json.Marshal(rec)
		}
		if err != nil {
			return fmt.Errorf("writer/file: marshal: %w", err)
		}

		if _, err := w.out.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writer/file: write: %w", err)
		}
	}
	return nil
}

// Close closes the rotating file, if one was opened. A plain io.Writer
// passed via cfg.Out is left untouched — its lifetime belongs to whoever
// created it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rotator != nil {
		return w.rotator.Close()
	}
	return nil
}

var _ models.OutputWriter = (*Writer)(nil)
