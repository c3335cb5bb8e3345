// Package discard implements a no-op OutputWriter, used by tests and by
// operators who want an explicit, observable sink that does nothing (as
// opposed to a server/query declaring no writers at all, which the executor
// also treats as a no-op by simply never submitting a result task).
package discard

import (
	"context"

	"github.com/vpbank/beanpoller/models"
)

// Writer discards every Result it receives.
type Writer struct{}

// New constructs a discard Writer.
func New() *Writer { return &Writer{} }

func (Writer) Start(context.Context) error { return nil }

func (Writer) ValidateSetup(models.Server, models.Query) error { return nil }

func (Writer) Write(context.Context, models.Server, models.Query, []models.Result) error {
	return nil
}

func (Writer) Close() error { return nil }

var _ models.OutputWriter = Writer{}
