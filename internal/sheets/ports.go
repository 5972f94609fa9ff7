package sheets

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordExporter copies stored expenses to an external spreadsheet.
	RecordExporter interface {
		// Export appends records in order, one row per record. When it
		// fails after writing some rows it returns a *PartialExportError.
		Export(ctx context.Context, records []core.Expense) error
	}
)

// PartialExportError is an export that failed after the first Exported
// records had already been written.
type PartialExportError struct {
	Exported int
	Err      error
}

func (e *PartialExportError) Error() string {
	return fmt.Sprintf("%v (after %d rows)", e.Err, e.Exported)
}

func (e *PartialExportError) Unwrap() error {
	return e.Err
}

// ExportedCount returns how many records a failed Export had written.
func ExportedCount(err error) int {
	var perr *PartialExportError
	if errors.As(err, &perr) {
		return perr.Exported
	}
	return 0
}

// Row converts an expense to the exported column layout:
// date, category, amount, comment.
func Row(e core.Expense) []any {
	return []any{e.Date, e.Category, e.Amount, e.CommentText()}
}
