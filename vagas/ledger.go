/*
ledger.go - Append-only action log writer

PURPOSE:
  The action log is the only source of truth for balances. The Writer
  appends one row inside the caller's transaction and returns its id.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. Ever.
  2. NO RULES HERE: callers run Validate first. This lets the course-change
     orchestrator check and write several rows in a fixed order under one
     transaction.
  3. WITHDRAW rows always carry quantity 0.
*/
package vagas

import (
	"context"
	"time"
)

// Writer appends actions inside one transaction.
type Writer struct {
	tx  Tx
	now func() time.Time
}

func NewWriter(tx Tx, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{tx: tx, now: now}
}

// Append stamps a and writes it. The returned id is assigned by the store.
func (w *Writer) Append(ctx context.Context, a Action) (ActionID, error) {
	if a.Type == ActionWithdraw {
		a.Quantity = 0
	}
	a.CreatedAt = w.now().UTC()

	id, err := w.tx.AppendAction(ctx, a)
	if err != nil {
		return 0, storeErr("append action", err)
	}
	return id, nil
}
