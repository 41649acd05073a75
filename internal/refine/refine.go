// Package refine runs the table refinement pipeline: build a prompt, send it
// to a provider once and recover a table from the reply.
//
// Nothing here holds state between calls. The caller keeps the Result and
// decides what to export.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/prompt"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/table"
)

// ErrEmptyInstruction is returned before any request is made when the
// instruction is blank.
var ErrEmptyInstruction = prompt.ErrEmptyInstruction

// ErrNotATable is what command surfaces report when the reply was
// unrecovered. Refine itself never returns it.
var ErrNotATable = errors.New("the reply could not be read as a table")

// Result is one completed round trip.
type Result struct {
	ID       uuid.UUID
	Outcome  recovery.Outcome
	Reply    *ai.Reply
	Duration time.Duration
}

// Table returns the recovered table, or nil when the reply was not a table.
func (r *Result) Table() *table.Table {
	if rec, ok := r.Outcome.(recovery.Recovered); ok {
		return rec.Table
	}
	return nil
}

// Refiner wires a provider to the prompt builder.
type Refiner struct {
	Provider ai.Provider
	Builder  prompt.Builder
	Logger   *slog.Logger
}

// New returns a Refiner using the default prompt builder.
func New(p ai.Provider) *Refiner {
	return &Refiner{Provider: p, Builder: prompt.DefaultBuilder()}
}

// Refine sends t and instruction to the provider and interprets the reply.
//
// An inference failure is returned as an *ai.Error; t is never modified.
// A reply that is not a table is not an error: the Result carries a
// recovery.Unrecovered outcome with the raw text.
func (r *Refiner) Refine(ctx context.Context, t *table.Table, instruction string) (*Result, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}

	payload, err := r.Builder.Build(t, instruction)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	log := r.logger().With("id", id.String(), "provider", r.Provider.Name())
	log.Debug("sending refine request",
		"rows", t.NumRows(), "columns", t.NumCols(), "prompt_chars", len(payload.User))

	start := time.Now()
	reply, err := r.Provider.Send(ctx, payload)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn("inference failed", "kind", ai.KindOf(err).String(), "duration", elapsed, "error", err)
		return nil, err
	}

	out := recovery.Recover(reply.Text)
	attrs := []any{"model", reply.Model, "duration", elapsed, "status", out.Status(),
		"input_tokens", reply.InputTokens, "output_tokens", reply.OutputTokens}
	if un, ok := out.(recovery.Unrecovered); ok {
		attrs = append(attrs, "reason", un.Reason.String())
	}
	log.Info("refine finished", attrs...)

	return &Result{ID: id, Outcome: out, Reply: reply, Duration: elapsed}, nil
}

func (r *Refiner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Describe summarises a result in one line for terminals and logs.
func Describe(res *Result) string {
	switch out := res.Outcome.(type) {
	case recovery.Recovered:
		return fmt.Sprintf("recovered a table with %d rows and %d columns", out.Table.NumRows(), out.Table.NumCols())
	case recovery.Unrecovered:
		return "the reply could not be read as a table: " + out.Diagnostic
	}
	return "no result"
}

// OutcomeError returns nil for a recovered result and ErrNotATable wrapped
// with the diagnostic otherwise.
func OutcomeError(res *Result) error {
	if un, ok := res.Outcome.(recovery.Unrecovered); ok {
		return fmt.Errorf("%w: %s", ErrNotATable, un.Diagnostic)
	}
	return nil
}

// IsInference reports whether err came from the provider call.
func IsInference(err error) bool {
	var e *ai.Error
	return errors.As(err, &e)
}
